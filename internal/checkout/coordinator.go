package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"furniture-store/internal/domain"
	"furniture-store/internal/metrics"
	"furniture-store/internal/retry"
)

// Session exposes the signed-in shopper.
type Session interface {
	Identity() *domain.Identity
	Profile() *domain.Profile
}

// Cart is the part of the cart store checkout consumes.
type Cart interface {
	IsEmpty() bool
	OrderItems(orderID uuid.UUID) ([]domain.OrderItem, decimal.Decimal)
	Clear()
}

// Receipt describes a completed checkout.
type Receipt struct {
	Order        domain.Order
	Confirmation domain.PaymentConfirmation
}

// State is a snapshot of the checkout form.
type State struct {
	Step       Step
	Values     map[string]string
	Submitting bool
	Receipt    *Receipt
	// Reconciliation is set once a payment was captured without an order.
	Reconciliation *domain.ReconciliationError
}

// Coordinator walks the checkout steps and places the order.
type Coordinator struct {
	session  Session
	cart     Cart
	payments domain.PaymentGateway
	orders   domain.OrderSink
	retrier  *retry.Retrier
	metrics  *metrics.CheckoutMetrics
	logger   *zap.Logger

	mu             sync.Mutex
	step           Step
	reached        Step
	values         map[string]string
	receipt        *Receipt
	reconciliation *domain.ReconciliationError
	observers      map[int]func(State)
	nextObs        int

	submitting atomic.Bool
}

// NewCoordinator creates a coordinator. checkoutMetrics may be nil.
func NewCoordinator(
	session Session,
	cart Cart,
	payments domain.PaymentGateway,
	orders domain.OrderSink,
	retrier *retry.Retrier,
	checkoutMetrics *metrics.CheckoutMetrics,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retrier == nil {
		retrier = retry.New(retry.Default(), logger)
	}
	return &Coordinator{
		session:   session,
		cart:      cart,
		payments:  payments,
		orders:    orders,
		retrier:   retrier,
		metrics:   checkoutMetrics,
		logger:    logger,
		values:    make(map[string]string),
		observers: make(map[int]func(State)),
	}
}

// Begin enters checkout. It fails with ErrNotSignedIn without a session and
// with ErrEmptyCart when there is nothing to buy, in which case the caller
// should redirect away. A completed checkout is reset to a fresh form.
func (c *Coordinator) Begin() error {
	identity := c.session.Identity()
	if identity == nil {
		return domain.ErrNotSignedIn
	}
	if c.cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	c.mu.Lock()
	if c.reconciliation != nil {
		err := c.reconciliation
		c.mu.Unlock()
		return err
	}
	if c.step == StepCompleted || len(c.values) == 0 {
		c.resetLocked()
		c.values[FieldEmail] = identity.Email
		if profile := c.session.Profile(); profile != nil {
			first, last, _ := strings.Cut(strings.TrimSpace(profile.FullName), " ")
			c.values[FieldFirstName] = first
			c.values[FieldLastName] = last
		}
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// Reset discards the form, including a pending reconciliation marker.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.reconciliation = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) resetLocked() {
	c.step = StepPersonalInfo
	c.reached = StepPersonalInfo
	c.values = make(map[string]string)
	c.receipt = nil
}

// Set stores a form value.
func (c *Coordinator) Set(field, value string) error {
	if _, ok := StepOf(field); !ok {
		return domain.NewValidationError(field, "unknown checkout field")
	}
	if field == FieldInstallments {
		if _, err := installments(value); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.step == StepCompleted {
		c.mu.Unlock()
		return domain.NewValidationError(field, "checkout already completed")
	}
	c.values[field] = value
	c.mu.Unlock()

	c.notify()
	return nil
}

// Next advances one step when the current step's required fields are set.
// The payment step is left through Submit only.
func (c *Coordinator) Next() error {
	c.mu.Lock()
	current := c.step
	switch current {
	case StepPayment:
		c.mu.Unlock()
		return domain.NewValidationError("step", "submit the payment to complete the order")
	case StepCompleted:
		c.mu.Unlock()
		return domain.NewValidationError("step", "checkout already completed")
	}
	if err := validateStep(current, c.values); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if current+1 == StepPayment && c.cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	c.mu.Lock()
	if c.step == current {
		c.step = current + 1
		if c.step > c.reached {
			c.reached = c.step
		}
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// Back returns to the previous step. It is a no-op on the first step and
// after completion.
func (c *Coordinator) Back() {
	c.mu.Lock()
	if c.step == StepPersonalInfo || c.step == StepCompleted {
		c.mu.Unlock()
		return
	}
	c.step--
	c.mu.Unlock()
	c.notify()
}

// GoTo jumps to a step already visited. Moving forward still requires every
// earlier step to be complete.
func (c *Coordinator) GoTo(step Step) error {
	if step < StepPersonalInfo || step >= StepCompleted {
		return domain.NewValidationError("step", "cannot jump to "+step.String())
	}

	c.mu.Lock()
	if c.step == StepCompleted {
		c.mu.Unlock()
		return domain.NewValidationError("step", "checkout already completed")
	}
	if step > c.reached {
		c.mu.Unlock()
		return domain.NewValidationError("step", step.String()+" has not been reached yet")
	}
	for s := StepPersonalInfo; s < step; s++ {
		if err := validateStep(s, c.values); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()

	if step == StepPayment && c.cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	c.mu.Lock()
	c.step = step
	c.mu.Unlock()
	c.notify()
	return nil
}

// Step returns the current step.
func (c *Coordinator) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Visited reports whether step has been reached in this checkout.
func (c *Coordinator) Visited(step Step) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return step <= c.reached
}

// State returns a snapshot of the form.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return State{
		Step:           c.step,
		Values:         values,
		Submitting:     c.submitting.Load(),
		Receipt:        c.receipt,
		Reconciliation: c.reconciliation,
	}
}

// Submit confirms the payment and records the order. A second call while one
// is outstanding fails with ErrActionInFlight. When the payment is captured
// but the order cannot be recorded, a *domain.ReconciliationError is
// returned and the cart is kept.
func (c *Coordinator) Submit(ctx context.Context) (*Receipt, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return nil, domain.ErrActionInFlight
	}
	c.notify()
	defer func() {
		c.submitting.Store(false)
		c.notify()
	}()

	identity := c.session.Identity()
	if identity == nil {
		return nil, domain.ErrNotSignedIn
	}

	c.mu.Lock()
	if c.reconciliation != nil {
		err := c.reconciliation
		c.mu.Unlock()
		return nil, err
	}
	if c.step != StepPayment {
		step := c.step
		c.mu.Unlock()
		if step == StepCompleted {
			return nil, domain.ErrEmptyCart
		}
		return nil, domain.NewValidationError("step", "complete "+step.String()+" first")
	}
	for s := StepPersonalInfo; s <= StepPayment; s++ {
		if err := validateStep(s, c.values); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	card := cardDetails(c.values)
	address := shippingAddress(c.values)
	email := strings.TrimSpace(c.values[FieldEmail])
	parts, _ := installments(c.values[FieldInstallments])
	c.mu.Unlock()

	if c.cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	started := time.Now()
	if c.metrics != nil {
		c.metrics.RecordStarted()
	}

	orderID := uuid.New()
	items, total := c.cart.OrderItems(orderID)
	log := c.logger.With(zap.String("order_id", orderID.String()), zap.String("user_id", identity.ID.String()))

	method, err := c.payments.Tokenize(ctx, card)
	if err != nil {
		log.Info("Card tokenization failed", zap.Error(err))
		return nil, err
	}

	var confirmation domain.PaymentConfirmation
	err = c.retrier.Do(ctx, "confirm payment", func(ctx context.Context) error {
		var err error
		confirmation, err = c.payments.Confirm(ctx, domain.PaymentRequest{
			OrderID:      orderID,
			Method:       method,
			Amount:       total,
			Email:        email,
			Installments: parts,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentFailed) && c.metrics != nil {
			c.metrics.RecordPaymentFailed()
		}
		log.Info("Payment not confirmed", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.String("payment_id", confirmation.ID))

	order := domain.Order{
		ID:               orderID,
		UserID:           identity.ID,
		TotalAmount:      total,
		ShippingAddress:  address,
		Status:           domain.OrderStatusPending,
		PaymentReference: confirmation.ID,
	}

	recorded, err := c.record(ctx, order, items)
	if err != nil {
		reconciliation := &domain.ReconciliationError{
			PaymentID: confirmation.ID,
			OrderID:   orderID,
			Cause:     err,
		}
		c.mu.Lock()
		c.reconciliation = reconciliation
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordReconciliationRequired()
		}
		log.Error("Payment captured but order not recorded", zap.Error(err))
		return nil, reconciliation
	}

	receipt := &Receipt{Order: recorded, Confirmation: confirmation}

	c.mu.Lock()
	c.step = StepCompleted
	c.reached = StepCompleted
	c.receipt = receipt
	for _, field := range sensitiveFields {
		delete(c.values, field)
	}
	c.mu.Unlock()

	c.cart.Clear()

	if c.metrics != nil {
		c.metrics.RecordCompleted(time.Since(started))
	}
	log.Info("Order placed", zap.String("total", total.StringFixed(2)))
	return receipt, nil
}

// record persists the order, its lines and the completed status, retrying
// connectivity failures of each call.
func (c *Coordinator) record(ctx context.Context, order domain.Order, items []domain.OrderItem) (domain.Order, error) {
	var stored *domain.Order
	err := c.retrier.Do(ctx, "insert order", func(ctx context.Context) error {
		var err error
		stored, err = c.orders.InsertOrder(ctx, order)
		return err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	err = c.retrier.Do(ctx, "insert order items", func(ctx context.Context) error {
		return c.orders.InsertOrderItems(ctx, order.ID, items)
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order items: %w", err)
	}

	err = c.retrier.Do(ctx, "complete order", func(ctx context.Context) error {
		return c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCompleted)
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("complete order: %w", err)
	}

	result := order
	if stored != nil {
		result = *stored
	}
	result.Items = items
	result.Status = domain.OrderStatusCompleted
	return result, nil
}

// Subscribe registers fn to receive every state change.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
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

func (c *Coordinator) notify() {
	c.mu.Lock()
	state := c.stateLocked()
	observers := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
