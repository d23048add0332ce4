package events

import (
	"context"
	"time"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEventType names a change in an order's lifecycle.
type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderItemsRecorded OrderEventType = "order.items_recorded"
	OrderStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent is published for every order state change.
type OrderEvent struct {
	ID          uuid.UUID          `json:"id"`
	Type        OrderEventType     `json:"type"`
	OrderID     uuid.UUID          `json:"order_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Status      domain.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	ItemCount   int                `json:"item_count,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// NewOrderEvent builds an event of type t describing order.
func NewOrderEvent(t OrderEventType, order *domain.Order) OrderEvent {
	return OrderEvent{
		ID:          uuid.New(),
		Type:        t,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher delivers order events to subscribers.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
