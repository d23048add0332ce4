package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Only a pending order
// can change, and only once.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && (next == OrderStatusCompleted || next == OrderStatusFailed)
}

// Recipient is the person receiving an order.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ShippingAddress is the structured delivery address of an order.
type ShippingAddress struct {
	Recipient    Recipient `json:"recipient"`
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement,omitempty"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
}

// OrderItem is one purchased line with the unit price frozen at checkout.
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// Subtotal returns UnitPrice multiplied by Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order and its lines.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	Items            []OrderItem     `json:"items,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	ShippingAddress  ShippingAddress `json:"shipping_address" db:"shipping_address"`
	Status           OrderStatus     `json:"status" db:"status"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// SumItems returns the exact total of the given lines.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateItems checks that every line is well formed and that the lines
// add up to total.
func ValidateItems(items []OrderItem, total decimal.Decimal) error {
	if len(items) == 0 {
		return NewValidationError("items", "order must contain at least one item")
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return NewValidationError("product_id", "product is required")
		}
		if item.Quantity < 1 {
			return NewValidationError("quantity", "quantity must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("unit_price", "unit price must not be negative")
		}
	}
	if !SumItems(items).Equal(total) {
		return NewValidationError("total_amount", "total amount does not match the order items")
	}
	return nil
}

// LineItem is one cart entry pairing a product with a positive quantity.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns the product price multiplied by the quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderItem freezes the line into an order item.
func (l LineItem) OrderItem(orderID uuid.UUID) OrderItem {
	return OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: l.Product.ID,
		Quantity:  l.Quantity,
		UnitPrice: l.Product.Price,
	}
}
