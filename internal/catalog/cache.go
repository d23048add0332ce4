package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"furniture-store/internal/domain"
	"furniture-store/internal/retry"
	"furniture-store/internal/storage"
)

// RoleChecker reports whether the current session may manage the catalog.
type RoleChecker interface {
	IsAdmin() bool
}

// Cache holds the product list fetched from the backend, newest first.
// Mutations are admin-only and update the local list from the backend's
// response without a re-fetch.
type Cache struct {
	source  domain.ProductSource
	files   domain.FileStorage
	roles   RoleChecker
	retrier *retry.Retrier
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	products  []domain.Product
	loaded    bool
	observers map[int]func([]domain.Product)
	nextObs   int
}

// NewCache creates an empty cache. files may be nil when image upload is
// not available.
func NewCache(source domain.ProductSource, files domain.FileStorage, roles RoleChecker, retrier *retry.Retrier, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retrier == nil {
		retrier = retry.New(retry.Default(), logger)
	}
	return &Cache{
		source:    source,
		files:     files,
		roles:     roles,
		retrier:   retrier,
		logger:    logger,
		now:       time.Now,
		observers: make(map[int]func([]domain.Product)),
	}
}

// Load fetches the full product list, retrying connectivity failures.
func (c *Cache) Load(ctx context.Context) error {
	var products []domain.Product
	err := c.retrier.Do(ctx, "list products", func(ctx context.Context) error {
		var err error
		products, err = c.source.ListProducts(ctx)
		return err
	})
	if err != nil {
		c.logger.Error("Failed to load products", zap.Error(err))
		return fmt.Errorf("failed to load products: %w", err)
	}

	domain.SortProducts(products, domain.SortNewest)

	c.mu.Lock()
	c.products = products
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("Products loaded", zap.Int("count", len(products)))
	c.notify()
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// List returns a copy of every cached product, newest first.
func (c *Cache) List() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the cached product with id.
func (c *Cache) Get(id uuid.UUID) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.products[i], nil
	}
	return domain.Product{}, domain.ErrNotFound
}

// Filter returns the cached products matching q.
func (c *Cache) Filter(q domain.ProductQuery) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return q.Apply(c.products)
}

// Featured returns the featured products, newest first.
func (c *Cache) Featured() []domain.Product {
	return c.Filter(domain.ProductQuery{FeaturedOnly: true})
}

// Create adds a product. Non-admins and non-numeric input are rejected
// before any backend call.
func (c *Cache) Create(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	fields, err := c.prepare(in)
	if err != nil {
		return nil, err
	}

	created, err := c.source.CreateProduct(ctx, fields)
	if err != nil {
		c.logger.Warn("Product creation rejected", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.products = append([]domain.Product{*created}, c.products...)
	c.mu.Unlock()

	c.logger.Info("Product created", zap.String("product_id", created.ID.String()))
	c.notify()
	return created, nil
}

// Update replaces the editable fields of product id.
func (c *Cache) Update(ctx context.Context, id uuid.UUID, in domain.ProductInput) (*domain.Product, error) {
	fields, err := c.prepare(in)
	if err != nil {
		return nil, err
	}

	var updated *domain.Product
	err = c.retrier.Do(ctx, "update product", func(ctx context.Context) error {
		var err error
		updated, err = c.source.UpdateProduct(ctx, id, fields)
		return err
	})
	if err != nil {
		c.logger.Warn("Product update rejected", zap.String("product_id", id.String()), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	if i := c.indexOf(id); i >= 0 {
		c.products[i] = *updated
	} else {
		c.products = append([]domain.Product{*updated}, c.products...)
	}
	c.mu.Unlock()

	c.notify()
	return updated, nil
}

// Delete removes product id. It reports false when the backend no longer
// has the product.
func (c *Cache) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if !c.roles.IsAdmin() {
		return false, domain.ErrUnauthorized
	}

	err := c.retrier.Do(ctx, "delete product", func(ctx context.Context) error {
		return c.source.DeleteProduct(ctx, id)
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.drop(id)
		return false, nil
	case err != nil:
		c.logger.Warn("Product deletion rejected", zap.String("product_id", id.String()), zap.Error(err))
		return false, err
	}

	c.drop(id)
	c.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return true, nil
}

// UploadImage stores a JPEG for the named product and returns its public URL.
func (c *Cache) UploadImage(ctx context.Context, productName string, r io.Reader) (string, error) {
	if !c.roles.IsAdmin() {
		return "", domain.ErrUnauthorized
	}
	if c.files == nil {
		return "", fmt.Errorf("image upload: %w", domain.ErrConnectivity)
	}

	data, err := io.ReadAll(io.LimitReader(r, storage.MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := storage.ValidateImage(data); err != nil {
		return "", err
	}

	path := storage.ProductImagePath(productName, c.now())
	var url string
	err = c.retrier.Do(ctx, "upload image", func(ctx context.Context) error {
		var err error
		url, err = c.files.Upload(ctx, path, bytes.NewReader(data), storage.ImageContentType)
		return err
	})
	if err != nil {
		c.logger.Error("Image upload failed", zap.String("path", path), zap.Error(err))
		return "", err
	}
	if url == "" {
		url = c.files.PublicURL(path)
	}
	return url, nil
}

// Subscribe registers fn to receive the product list after every change.
func (c *Cache) Subscribe(fn func([]domain.Product)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Cache) prepare(in domain.ProductInput) (domain.ProductFields, error) {
	if !c.roles.IsAdmin() {
		return domain.ProductFields{}, domain.ErrUnauthorized
	}
	return in.Parse()
}

func (c *Cache) drop(id uuid.UUID) {
	c.mu.Lock()
	i := c.indexOf(id)
	if i >= 0 {
		c.products = append(c.products[:i], c.products[i+1:]...)
	}
	c.mu.Unlock()

	if i >= 0 {
		c.notify()
	}
}

func (c *Cache) indexOf(id uuid.UUID) int {
	for i, p := range c.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cache) notify() {
	products := c.List()

	c.mu.RLock()
	observers := make([]func([]domain.Product), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.RUnlock()

	for _, fn := range observers {
		fn(products)
	}
}
