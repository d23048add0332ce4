package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceholderImageURL is shown for products without an image of their own.
const PlaceholderImageURL = "https://images.unsplash.com/photo-1555041469-a586c61ea9bc?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8Mnx8ZnVybml0dXJlfGVufDB8fDB8fHww&auto=format&fit=crop&w=500&q=60"

// Category is one of the fixed storefront categories.
type Category string

const (
	CategoryUtilities  Category = "utilidades"
	CategoryWardrobes  Category = "roupeiros"
	CategoryDressers   Category = "comodas"
	CategoryTables     Category = "mesa"
	CategoryChairs     Category = "cadeira"
	CategorySofas      Category = "sofa"
	CategoryDecor      Category = "decoracao"
	CategoryBeds       Category = "camas"
	CategoryCabinets   Category = "armarios"
	CategoryMattresses Category = "colchoes"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryUtilities,
	CategoryWardrobes,
	CategoryDressers,
	CategoryTables,
	CategoryChairs,
	CategorySofas,
	CategoryDecor,
	CategoryBeds,
	CategoryCabinets,
	CategoryMattresses,
}

// Valid reports whether c belongs to the known category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description" db:"description"`
	Price         decimal.Decimal     `json:"price" db:"price"`
	Category      Category            `json:"category" db:"category"`
	ImageURL      string              `json:"image_url" db:"image_url"`
	StockQuantity int                 `json:"stock_quantity" db:"stock_quantity"`
	Featured      bool                `json:"featured" db:"featured"`
	Rating        decimal.NullDecimal `json:"rating" db:"rating"`
	AddedBy       *uuid.UUID          `json:"added_by" db:"added_by"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// Image returns the product image, falling back to the placeholder.
func (p Product) Image() string {
	if strings.TrimSpace(p.ImageURL) == "" {
		return PlaceholderImageURL
	}
	return p.ImageURL
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// ProductFields holds the typed, editable fields of a product.
type ProductFields struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	Category      Category            `json:"category"`
	ImageURL      string              `json:"image_url"`
	StockQuantity int                 `json:"stock_quantity"`
	Featured      bool                `json:"featured"`
	Rating        decimal.NullDecimal `json:"rating"`
}

var maxRating = decimal.NewFromInt(5)

// Validate checks the field invariants shared by every writer of products.
func (f ProductFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if f.Price.IsNegative() {
		return NewValidationError("price", "price must not be negative")
	}
	if !f.Price.Equal(f.Price.Round(2)) {
		return NewValidationError("price", "price must have at most 2 decimal places")
	}
	if !f.Category.Valid() {
		return NewValidationError("category", "unknown category "+strconv.Quote(string(f.Category)))
	}
	if f.StockQuantity < 0 {
		return NewValidationError("stock_quantity", "stock quantity must not be negative")
	}
	if f.Rating.Valid && (f.Rating.Decimal.IsNegative() || f.Rating.Decimal.GreaterThan(maxRating)) {
		return NewValidationError("rating", "rating must be between 0 and 5")
	}
	return nil
}

// Apply copies the fields onto p.
func (f ProductFields) Apply(p *Product) {
	p.Name = strings.TrimSpace(f.Name)
	p.Description = strings.TrimSpace(f.Description)
	p.Price = f.Price
	p.Category = f.Category
	p.ImageURL = strings.TrimSpace(f.ImageURL)
	p.StockQuantity = f.StockQuantity
	p.Featured = f.Featured
	p.Rating = f.Rating
}

// ProductInput is a product form as entered by an administrator. Numeric
// fields arrive as text and are coerced by Parse.
type ProductInput struct {
	Name          string
	Description   string
	Price         string
	Category      string
	ImageURL      string
	StockQuantity string
	Featured      bool
	Rating        string
}

// Parse coerces the form into typed fields. It fails with a ValidationError
// when price, stock or rating are not numeric, or when a field invariant
// does not hold.
func (in ProductInput) Parse() (ProductFields, error) {
	fields := ProductFields{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    Category(strings.ToLower(strings.TrimSpace(in.Category))),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Featured:    in.Featured,
	}

	rawPrice := strings.TrimSpace(in.Price)
	if rawPrice == "" {
		return ProductFields{}, NewValidationError("price", "price is required")
	}
	price, err := decimal.NewFromString(strings.Replace(rawPrice, ",", ".", 1))
	if err != nil {
		return ProductFields{}, NewValidationError("price", "price must be a number")
	}
	fields.Price = price

	rawStock := strings.TrimSpace(in.StockQuantity)
	if rawStock == "" {
		return ProductFields{}, NewValidationError("stock_quantity", "stock quantity is required")
	}
	stock, err := strconv.Atoi(rawStock)
	if err != nil {
		return ProductFields{}, NewValidationError("stock_quantity", "stock quantity must be a whole number")
	}
	fields.StockQuantity = stock

	if rawRating := strings.TrimSpace(in.Rating); rawRating != "" {
		rating, err := decimal.NewFromString(strings.Replace(rawRating, ",", ".", 1))
		if err != nil {
			return ProductFields{}, NewValidationError("rating", "rating must be a number")
		}
		fields.Rating = decimal.NewNullDecimal(rating)
	}

	if err := fields.Validate(); err != nil {
		return ProductFields{}, err
	}
	return fields, nil
}

// FormatPrice renders an amount for display, rounded to cents.
func FormatPrice(amount decimal.Decimal) string {
	return "R$ " + amount.StringFixed(2)
}
