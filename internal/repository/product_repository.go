package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// productOrderBy maps each sort order onto a fixed ORDER BY clause.
var productOrderBy = map[domain.SortOrder]string{
	"":                   "created_at DESC, id",
	domain.SortNewest:    "created_at DESC, id",
	domain.SortPriceAsc:  "price ASC, created_at DESC",
	domain.SortPriceDesc: "price DESC, created_at DESC",
	domain.SortName:      "LOWER(name) ASC, created_at DESC",
	domain.SortRating:    "rating DESC NULLS LAST, created_at DESC",
}

const productColumns = `id, name, description, price, category, image_url, stock_quantity,
		featured, rating, added_by, created_at, updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.ImageURL,
		product.StockQuantity,
		product.Featured,
		product.Rating,
		nullUUID(product.AddedBy),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update rewrites the editable fields; added_by and created_at are kept.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, image_url = $6,
		    stock_quantity = $7, featured = $8, rating = $9, updated_at = $10
		WHERE id = $1
		RETURNING added_by, created_at
	`,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.ImageURL,
		product.StockQuantity,
		product.Featured,
		product.Rating,
		product.UpdatedAt,
	).Scan(newNullUUIDScanner(&product.AddedBy), &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// List returns the products matching q. The sort clause comes from a fixed
// table; filter values are always bound as parameters.
func (r *productRepository) List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Category != "" {
		where = append(where, "category = "+bind(q.Category))
	}
	if q.FeaturedOnly {
		where = append(where, "featured = TRUE")
	}
	if q.InStockOnly {
		where = append(where, "stock_quantity > 0")
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		p := bind("%" + term + "%")
		where = append(where, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}

	orderBy, ok := productOrderBy[q.Sort]
	if !ok {
		orderBy = productOrderBy[domain.SortNewest]
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.ImageURL,
		&p.StockQuantity,
		&p.Featured,
		&p.Rating,
		newNullUUIDScanner(&p.AddedBy),
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// nullUUIDScanner scans a nullable uuid column into a *uuid.UUID field.
type nullUUIDScanner struct {
	dst **uuid.UUID
}

func newNullUUIDScanner(dst **uuid.UUID) *nullUUIDScanner {
	return &nullUUIDScanner{dst: dst}
}

func (s *nullUUIDScanner) Scan(src any) error {
	var n uuid.NullUUID
	if err := n.Scan(src); err != nil {
		return err
	}
	if !n.Valid {
		*s.dst = nil
		return nil
	}
	id := n.UUID
	*s.dst = &id
	return nil
}
