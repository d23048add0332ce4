package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furniture-store/internal/domain"
	"furniture-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService manages the catalog. Callers enforce the admin role for
// mutations.
type ProductService interface {
	List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, fields domain.ProductFields, addedBy uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, fields domain.ProductFields) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	products repository.ProductRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, logger *zap.Logger) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{products: products, logger: logger, now: time.Now}
}

func (s *productService) List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	if q.Category != "" && !q.Category.Valid() {
		return nil, domain.NewValidationError("category", fmt.Sprintf("unknown category %q", q.Category))
	}
	if !q.Sort.Valid() {
		return nil, domain.NewValidationError("sort", fmt.Sprintf("unknown sort order %q", q.Sort))
	}
	return s.products.List(ctx, q)
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, fields domain.ProductFields, addedBy uuid.UUID) (*domain.Product, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if addedBy != uuid.Nil {
		product.AddedBy = &addedBy
	}
	fields.Apply(product)

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("category", string(product.Category)),
	)
	return product, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, fields domain.ProductFields) (*domain.Product, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	product := &domain.Product{ID: id, UpdatedAt: s.now().UTC()}
	fields.Apply(product)
	if err := s.products.Update(ctx, product); err != nil {
		return nil, notFound(err, "product", id)
	}
	s.logger.Info("Product updated", zap.String("product_id", id.String()))
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return notFound(err, "product", id)
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// notFound maps repository not-found sentinels onto domain.ErrNotFound.
func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrOrderNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return err
}
