package cart

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

// Snapshot is an immutable view of the cart passed to observers.
type Snapshot struct {
	Items      []domain.LineItem
	TotalItems int
	TotalPrice decimal.Decimal
}

// Store holds the line items of the active session. It never talks to the
// network. Lines keep insertion order and there is at most one line per
// product.
type Store struct {
	mu        sync.RWMutex
	lines     []domain.LineItem
	observers map[int]func(Snapshot)
	nextObs   int
	logger    *zap.Logger
}

// NewStore creates an empty cart.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		observers: make(map[int]func(Snapshot)),
		logger:    logger,
	}
}

// Add puts quantity units of product in the cart, incrementing an existing
// line for the same product.
func (s *Store) Add(product domain.Product, quantity int) error {
	if quantity < 1 {
		return domain.NewValidationError("quantity", "quantity must be at least 1")
	}

	s.mu.Lock()
	if i := s.indexOf(product.ID); i >= 0 {
		s.lines[i].Quantity += quantity
		s.lines[i].Product = product
	} else {
		s.lines = append(s.lines, domain.LineItem{Product: product, Quantity: quantity})
	}
	s.mu.Unlock()

	s.logger.Debug("Cart item added",
		zap.String("product_id", product.ID.String()),
		zap.Int("quantity", quantity),
	)
	s.notify()
	return nil
}

// Remove drops the line for productID. Removing an absent product is a no-op.
func (s *Store) Remove(productID uuid.UUID) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.mu.Unlock()

	s.notify()
}

// SetQuantity replaces the quantity of the line for productID. Zero removes
// the line; a negative value is rejected without changing anything.
func (s *Store) SetQuantity(productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return domain.NewValidationError("quantity", "quantity must not be negative")
	}
	if quantity == 0 {
		s.Remove(productID)
		return nil
	}

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	s.lines[i].Quantity = quantity
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	wasEmpty := len(s.lines) == 0
	s.lines = nil
	s.mu.Unlock()

	if !wasEmpty {
		s.notify()
	}
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLines()
}

// Quantity returns the quantity held for productID, or zero.
func (s *Store) Quantity(productID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines) == 0
}

// TotalItems returns the sum of all line quantities.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalItems(s.lines)
}

// TotalPrice returns the exact sum of unit price times quantity.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.lines)
}

// Snapshot returns the lines and totals computed under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Items:      s.copyLines(),
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
	}
}

// OrderItems freezes the current lines into order items for orderID along
// with their exact total.
func (s *Store) OrderItems(orderID uuid.UUID) ([]domain.OrderItem, decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.OrderItem, 0, len(s.lines))
	for _, line := range s.lines {
		items = append(items, line.OrderItem(orderID))
	}
	return items, domain.SumItems(items)
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := Snapshot{
		Items:      s.copyLines(),
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
	}
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (s *Store) indexOf(productID uuid.UUID) int {
	for i, line := range s.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyLines() []domain.LineItem {
	out := make([]domain.LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

func totalItems(lines []domain.LineItem) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

func totalPrice(lines []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
