package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardDetails are the raw card fields collected on the payment step.
type CardDetails struct {
	Number string
	Holder string
	Expiry string
	CVV    string
}

// PaymentMethod is an opaque reference to tokenized card details.
type PaymentMethod struct {
	Reference string
	Brand     string
	Last4     string
}

// MaxInstallments is the largest number of interest-free instalments a
// payment can be split into.
const MaxInstallments = 12

// PaymentRequest asks the payment collaborator to capture Amount. Zero
// Installments means a single payment.
type PaymentRequest struct {
	OrderID      uuid.UUID
	Method       PaymentMethod
	Amount       decimal.Decimal
	Email        string
	Installments int
}

// PaymentConfirmation is the result of a captured payment.
type PaymentConfirmation struct {
	ID           string
	Amount       decimal.Decimal
	Installments int
	ConfirmedAt  time.Time
}
