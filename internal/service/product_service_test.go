package service

import (
	"context"
	"testing"

	"furniture-store/internal/domain"
	"furniture-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
	lastList domain.ProductQuery
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	existing, ok := m.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.AddedBy = existing.AddedBy
	product.CreatedAt = existing.CreatedAt
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	m.lastList = q
	var out []domain.Product
	for _, p := range m.products {
		if q.Matches(*p) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func sofaFields() domain.ProductFields {
	return domain.ProductFields{
		Name:          " Sofa Retrátil ",
		Price:         decimal.RequireFromString("1899.90"),
		Category:      domain.CategorySofas,
		StockQuantity: 3,
	}
}

func TestProductService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	svc := NewProductService(repo, nil)
	admin := uuid.New()

	created, err := svc.Create(ctx, sofaFields(), admin)
	require.NoError(t, err)
	assert.Equal(t, "Sofa Retrátil", created.Name)
	require.NotNil(t, created.AddedBy)
	assert.Equal(t, admin, *created.AddedBy)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1899.90")))
}

func TestProductService_CreateRejectsInvalidFields(t *testing.T) {
	repo := newMockProductRepository()
	svc := NewProductService(repo, nil)

	fields := sofaFields()
	fields.Category = "garagem"
	_, err := svc.Create(context.Background(), fields, uuid.New())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)
	assert.Empty(t, repo.products)
}

func TestProductService_UpdateKeepsAuthor(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	svc := NewProductService(repo, nil)
	admin := uuid.New()

	created, err := svc.Create(ctx, sofaFields(), admin)
	require.NoError(t, err)

	fields := sofaFields()
	fields.StockQuantity = 0
	updated, err := svc.Update(ctx, created.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.StockQuantity)
	require.NotNil(t, updated.AddedBy)
	assert.Equal(t, admin, *updated.AddedBy)
}

func TestProductService_MissingProductIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewProductService(newMockProductRepository(), nil)
	id := uuid.New()

	_, err := svc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Update(ctx, id, sofaFields())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, id), domain.ErrNotFound)
}

func TestProductService_ListValidatesQuery(t *testing.T) {
	ctx := context.Background()
	repo := newMockProductRepository()
	svc := NewProductService(repo, nil)

	_, err := svc.List(ctx, domain.ProductQuery{Category: "garagem"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.List(ctx, domain.ProductQuery{Sort: "random"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	q := domain.ProductQuery{Category: domain.CategoryBeds, FeaturedOnly: true, Sort: domain.SortPriceAsc}
	_, err = svc.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, q, repo.lastList)
}
