package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error taxonomy shared by the storefront core and the backend.
var (
	ErrValidation             = errors.New("validation failed")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrConnectivity           = errors.New("backend unreachable")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrReconciliationRequired = errors.New("payment captured but order not recorded")

	ErrEmptyCart      = errors.New("cart is empty")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrActionInFlight = errors.New("action already in progress")
	ErrStepIncomplete = errors.New("checkout step incomplete")
)

// ValidationError reports bad local input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StepIncompleteError lists the required checkout fields that are still empty.
type StepIncompleteError struct {
	Step    string
	Missing []string
}

func (e *StepIncompleteError) Error() string {
	return fmt.Sprintf("step %s incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

// Is matches both ErrStepIncomplete and ErrValidation.
func (e *StepIncompleteError) Is(target error) bool {
	return target == ErrStepIncomplete || target == ErrValidation
}

// ReconciliationError signals that a payment was captured but the order
// could not be recorded. It is never retried automatically.
type ReconciliationError struct {
	PaymentID string
	OrderID   uuid.UUID
	Cause     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s captured but order %s not recorded: %v", e.PaymentID, e.OrderID, e.Cause)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}

// Is makes every ReconciliationError match ErrReconciliationRequired.
func (e *ReconciliationError) Is(target error) bool {
	return target == ErrReconciliationRequired
}

// RemoteError carries a rejection returned by a collaborator. Message is
// kept verbatim and Kind classifies it within the taxonomy.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Kind    error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Rejection is a refusal with a message that is safe to show to callers.
// Kind places it in the taxonomy.
type Rejection struct {
	Kind    error
	Message string
}

// NewRejection creates a Rejection of kind with message.
func NewRejection(kind error, message string) *Rejection {
	return &Rejection{Kind: kind, Message: message}
}

func (e *Rejection) Error() string {
	return e.Message
}

func (e *Rejection) Is(target error) bool {
	return target == e.Kind
}

// UserMessage converts err into text suitable for showing to a shopper.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var reconciliation *ReconciliationError
	if errors.As(err, &reconciliation) {
		return fmt.Sprintf("Your payment was received but we could not record your order. "+
			"Please contact support and quote payment reference %s.", reconciliation.PaymentID)
	}

	var incomplete *StepIncompleteError
	if errors.As(err, &incomplete) {
		return "Please fill in: " + strings.Join(incomplete.Missing, ", ")
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}

	var (
		remote    *RemoteError
		rejection *Rejection
		message   string
	)
	if errors.As(err, &remote) {
		message = remote.Message
	} else if errors.As(err, &rejection) {
		message = rejection.Message
	}
	hasRemote := message != ""

	switch {
	case errors.Is(err, ErrPaymentFailed):
		return "Your payment was declined. Please check your card details and try again."
	case errors.Is(err, ErrConnectivity):
		return "We could not reach the store. Check your connection and try again."
	case errors.Is(err, ErrUnauthorized):
		if hasRemote {
			return message
		}
		return "You are not allowed to do that."
	case errors.Is(err, ErrNotFound):
		return "The requested item could not be found."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrNotSignedIn):
		return "Please sign in to continue."
	case errors.Is(err, ErrActionInFlight):
		return "Please wait, your previous request is still being processed."
	case hasRemote:
		return message
	default:
		return "Something went wrong. Please try again."
	}
}
