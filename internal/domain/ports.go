package domain

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// AuthProvider is the authentication collaborator.
type AuthProvider interface {
	// GetSession returns the restored identity, or nil when there is none.
	GetSession(ctx context.Context) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	// SignUp returns nil identity when the account was created without a session.
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChange registers fn for identity changes in the order they occur.
	OnIdentityChange(fn func(IdentityEvent)) (unsubscribe func())
}

// ProfileSource reads user_profiles.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// ProductSource reads and writes products.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, fields ProductFields) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, fields ProductFields) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// OrderSink persists orders and order_items.
type OrderSink interface {
	// InsertOrder is idempotent on order.ID.
	InsertOrder(ctx context.Context, order Order) (*Order, error)
	InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []OrderItem) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) error
}

// FileStorage stores uploaded files and produces public URLs for them.
type FileStorage interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	PublicURL(path string) string
}

// PaymentGateway is the payment collaborator.
type PaymentGateway interface {
	Tokenize(ctx context.Context, card CardDetails) (PaymentMethod, error)
	Confirm(ctx context.Context, req PaymentRequest) (PaymentConfirmation, error)
}
