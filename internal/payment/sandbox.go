package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

// DefaultDeclinedSuffixes are card-number endings the sandbox always declines.
var DefaultDeclinedSuffixes = []string{"0002"}

// SandboxGateway is an in-process payment gateway for development and
// tests. It validates card details, issues opaque references and captures
// every payment except those made with a declined card. Confirmations are
// idempotent per order.
type SandboxGateway struct {
	logger   *zap.Logger
	now      func() time.Time
	declined []string

	mu        sync.Mutex
	methods   map[string]domain.CardDetails
	confirmed map[uuid.UUID]domain.PaymentConfirmation

	TokenizeCalls int
	ConfirmCalls  int
}

// NewSandboxGateway creates a sandbox that declines DefaultDeclinedSuffixes.
func NewSandboxGateway(logger *zap.Logger) *SandboxGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SandboxGateway{
		logger:    logger,
		now:       time.Now,
		declined:  DefaultDeclinedSuffixes,
		methods:   make(map[string]domain.CardDetails),
		confirmed: make(map[uuid.UUID]domain.PaymentConfirmation),
	}
}

// Decline adds card-number suffixes that will be declined.
func (g *SandboxGateway) Decline(suffixes ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declined = append(append([]string(nil), g.declined...), suffixes...)
}

// Tokenize validates card and returns a payment-method reference.
func (g *SandboxGateway) Tokenize(ctx context.Context, card domain.CardDetails) (domain.PaymentMethod, error) {
	g.mu.Lock()
	g.TokenizeCalls++
	g.mu.Unlock()

	number := digitsOnly(card.Number)
	if err := validateCard(number, card, g.now()); err != nil {
		return domain.PaymentMethod{}, err
	}

	method := domain.PaymentMethod{
		Reference: "pm_" + uuid.NewString(),
		Brand:     brand(number),
		Last4:     number[len(number)-4:],
	}

	stored := card
	stored.Number = number
	g.mu.Lock()
	g.methods[method.Reference] = stored
	g.mu.Unlock()

	return method, nil
}

// Confirm captures the payment. Confirming an order again returns the
// original confirmation.
func (g *SandboxGateway) Confirm(ctx context.Context, req domain.PaymentRequest) (domain.PaymentConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentConfirmation{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.ConfirmCalls++

	if existing, ok := g.confirmed[req.OrderID]; ok {
		return existing, nil
	}

	card, ok := g.methods[req.Method.Reference]
	if !ok {
		return domain.PaymentConfirmation{}, fmt.Errorf("unknown payment method: %w", domain.ErrPaymentFailed)
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentConfirmation{}, domain.NewValidationError("amount", "amount must be positive")
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	if installments < 1 || installments > domain.MaxInstallments {
		return domain.PaymentConfirmation{}, domain.NewValidationError("installments",
			fmt.Sprintf("installments must be between 1 and %d", domain.MaxInstallments))
	}
	for _, suffix := range g.declined {
		if strings.HasSuffix(card.Number, suffix) {
			g.logger.Info("Sandbox payment declined",
				zap.String("order_id", req.OrderID.String()),
				zap.String("last4", req.Method.Last4),
			)
			return domain.PaymentConfirmation{}, fmt.Errorf("card declined: %w", domain.ErrPaymentFailed)
		}
	}

	confirmation := domain.PaymentConfirmation{
		ID:           "pay_" + uuid.NewString(),
		Amount:       req.Amount,
		Installments: installments,
		ConfirmedAt:  g.now(),
	}
	g.confirmed[req.OrderID] = confirmation

	g.logger.Info("Sandbox payment captured",
		zap.String("order_id", req.OrderID.String()),
		zap.String("payment_id", confirmation.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.Int("installments", installments),
	)
	return confirmation, nil
}

func validateCard(number string, card domain.CardDetails, now time.Time) error {
	if len(number) < 12 || len(number) > 19 || !luhn(number) {
		return domain.NewValidationError("card_number", "card number is invalid")
	}
	if strings.TrimSpace(card.Holder) == "" {
		return domain.NewValidationError("card_name", "name on card is required")
	}

	month, year, ok := parseExpiry(card.Expiry)
	if !ok {
		return domain.NewValidationError("expiry", "expiry must be MM/YY")
	}
	// A card is valid through the last day of its expiry month.
	expires := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expires) {
		return domain.NewValidationError("expiry", "card has expired")
	}

	cvv := strings.TrimSpace(card.CVV)
	if len(cvv) < 3 || len(cvv) > 4 || digitsOnly(cvv) != cvv {
		return domain.NewValidationError("cvv", "security code is invalid")
	}
	return nil
}

func parseExpiry(expiry string) (month, year int, ok bool) {
	mm, yy, found := strings.Cut(strings.TrimSpace(expiry), "/")
	if !found {
		return 0, 0, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	yy = strings.TrimSpace(yy)
	year, err = strconv.Atoi(yy)
	if err != nil {
		return 0, 0, false
	}
	switch len(yy) {
	case 2:
		year += 2000
	case 4:
	default:
		return 0, 0, false
	}
	return month, year, true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return ""
		}
	}
	return b.String()
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func brand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case len(number) >= 2 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(number, "34") || strings.HasPrefix(number, "37"):
		return "amex"
	default:
		return "card"
	}
}

var _ domain.PaymentGateway = (*SandboxGateway)(nil)
