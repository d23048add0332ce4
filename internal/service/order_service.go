package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furniture-store/internal/domain"
	"furniture-store/internal/events"
	"furniture-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderOwnedByAnother = domain.NewRejection(domain.ErrConflict, "order id already used by another account")
	ErrOrderNotPending     = domain.NewRejection(domain.ErrConflict, "order is no longer pending")
	ErrOrderHasNoItems     = domain.NewRejection(domain.ErrConflict, "order has no items")
	ErrOrderItemsRecorded  = domain.NewRejection(domain.ErrConflict, "order items already recorded")
	ErrOrderTotalMismatch  = domain.NewRejection(domain.ErrConflict, "order items do not add up to the order total")
)

// OrderService records orders placed at checkout. Every method acts on
// behalf of owner and only sees owner's orders.
type OrderService interface {
	// Create stores order under owner. Repeating it with the same order id
	// returns the stored order.
	Create(ctx context.Context, owner uuid.UUID, order domain.Order) (*domain.Order, error)
	AddItems(ctx context.Context, owner, orderID uuid.UUID, items []domain.OrderItem) (*domain.Order, error)
	UpdateStatus(ctx context.Context, owner, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	Get(ctx context.Context, owner, orderID uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, owner uuid.UUID) ([]domain.Order, error)
}

type orderService struct {
	orders    repository.OrderRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService. A nil publisher
// drops order events.
func NewOrderService(orders repository.OrderRepository, publisher events.Publisher, logger *zap.Logger) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderService{orders: orders, publisher: publisher, logger: logger, now: time.Now}
}

func (s *orderService) Create(ctx context.Context, owner uuid.UUID, order domain.Order) (*domain.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.Status != domain.OrderStatusPending {
		return nil, domain.NewValidationError("status", "new orders must be pending")
	}
	if order.TotalAmount.IsNegative() {
		return nil, domain.NewValidationError("total_amount", "total amount must not be negative")
	}

	now := s.now().UTC()
	order.UserID = owner
	order.Items = nil
	order.CreatedAt = now
	order.UpdatedAt = now

	inserted, err := s.orders.Create(ctx, &order)
	if err != nil {
		return nil, err
	}
	if !inserted {
		stored, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			return nil, notFound(err, "order", order.ID)
		}
		if stored.UserID != owner {
			return nil, ErrOrderOwnedByAnother
		}
		return stored, nil
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", owner.String()),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	s.publish(ctx, events.OrderCreated, &order)
	return &order, nil
}

// AddItems records the lines of a pending order. The lines must add up to
// the order total. Lines are recorded once: resending the stored lines is a
// no-op and any other batch is a conflict.
func (s *orderService) AddItems(ctx context.Context, owner, orderID uuid.UUID, items []domain.OrderItem) (*domain.Order, error) {
	order, err := s.Get(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	if len(order.Items) > 0 {
		if sameItems(order.Items, items) {
			return order, nil
		}
		return nil, ErrOrderItemsRecorded
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	lines := make([]domain.OrderItem, len(items))
	for i, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = orderID
		lines[i] = item
	}
	if err := domain.ValidateItems(lines, order.TotalAmount); err != nil {
		return nil, err
	}

	if err := s.orders.AddItems(ctx, orderID, lines); err != nil {
		return nil, err
	}
	order.Items = lines

	s.logger.Info("Order items recorded",
		zap.String("order_id", orderID.String()),
		zap.Int("item_count", len(lines)),
	)
	s.publish(ctx, events.OrderItemsRecorded, order)
	return order, nil
}

// UpdateStatus moves a pending order to completed or failed. Repeating the
// transition that already happened is a no-op.
func (s *orderService) UpdateStatus(ctx context.Context, owner, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}

	order, err := s.Get(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status && status != domain.OrderStatusPending {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, ErrOrderNotPending
	}
	if status == domain.OrderStatusCompleted {
		if len(order.Items) == 0 {
			return nil, ErrOrderHasNoItems
		}
		if !domain.SumItems(order.Items).Equal(order.TotalAmount) {
			return nil, ErrOrderTotalMismatch
		}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, status, ""); err != nil {
		if errors.Is(err, repository.ErrOrderStatusUnchanged) {
			return nil, ErrOrderNotPending
		}
		return nil, err
	}
	order.Status = status
	order.UpdatedAt = s.now().UTC()

	s.logger.Info("Order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(status)),
	)
	s.publish(ctx, events.OrderStatusChanged, order)
	return order, nil
}

// Get returns owner's order. Orders of other accounts are reported as not
// found.
func (s *orderService) Get(ctx context.Context, owner, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if order.UserID != owner {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, owner uuid.UUID) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, owner)
}

// publish logs delivery failures; the order is already stored.
func (s *orderService) publish(ctx context.Context, t events.OrderEventType, order *domain.Order) {
	if err := s.publisher.PublishOrderEvent(ctx, events.NewOrderEvent(t, order)); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", string(t)),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

// sameItems reports whether every incoming line is already stored.
func sameItems(stored, incoming []domain.OrderItem) bool {
	if len(incoming) == 0 {
		return false
	}
	ids := make(map[uuid.UUID]struct{}, len(stored))
	for _, item := range stored {
		ids[item.ID] = struct{}{}
	}
	for _, item := range incoming {
		if _, ok := ids[item.ID]; !ok {
			return false
		}
	}
	return true
}
