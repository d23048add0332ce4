package checkout

import (
	"fmt"
	"strconv"
	"strings"

	"furniture-store/internal/domain"
)

// Step is a checkout form step.
type Step int

const (
	StepPersonalInfo Step = iota
	StepAddress
	StepPayment
	StepCompleted
)

func (s Step) String() string {
	switch s {
	case StepPersonalInfo:
		return "personal_info"
	case StepAddress:
		return "address"
	case StepPayment:
		return "payment"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseStep returns the form step named name.
func ParseStep(name string) (Step, bool) {
	for s := StepPersonalInfo; s < StepCompleted; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Form field names.
const (
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldPostalCode   = "postal_code"
	FieldStreet       = "street"
	FieldNumber       = "number"
	FieldComplement   = "complement"
	FieldNeighborhood = "neighborhood"
	FieldCity         = "city"
	FieldState        = "state"
	FieldCardNumber   = "card_number"
	FieldCardName     = "card_name"
	FieldExpiry       = "expiry"
	FieldCVV          = "cvv"
	FieldInstallments = "installments"
)

var stepFields = map[Step][]string{
	StepPersonalInfo: {FieldFirstName, FieldLastName, FieldEmail, FieldPhone},
	StepAddress:      {FieldPostalCode, FieldStreet, FieldNumber, FieldComplement, FieldNeighborhood, FieldCity, FieldState},
	StepPayment:      {FieldCardNumber, FieldCardName, FieldExpiry, FieldCVV, FieldInstallments},
}

var optionalFields = map[string]bool{
	FieldComplement:   true,
	FieldInstallments: true,
}

// sensitiveFields are cleared once an order completes.
var sensitiveFields = []string{FieldCardNumber, FieldCardName, FieldExpiry, FieldCVV}

// Fields returns the field names collected on step.
func Fields(step Step) []string {
	return append([]string(nil), stepFields[step]...)
}

// StepOf returns the step a field belongs to.
func StepOf(field string) (Step, bool) {
	for step, fields := range stepFields {
		for _, f := range fields {
			if f == field {
				return step, true
			}
		}
	}
	return 0, false
}

// validateStep returns a StepIncompleteError naming every required field of
// step that is empty.
func validateStep(step Step, values map[string]string) error {
	var missing []string
	for _, field := range stepFields[step] {
		if optionalFields[field] {
			continue
		}
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &domain.StepIncompleteError{Step: step.String(), Missing: missing}
	}
	return nil
}

func shippingAddress(values map[string]string) domain.ShippingAddress {
	get := func(field string) string { return strings.TrimSpace(values[field]) }
	return domain.ShippingAddress{
		Recipient: domain.Recipient{
			Name:  strings.TrimSpace(get(FieldFirstName) + " " + get(FieldLastName)),
			Email: get(FieldEmail),
			Phone: get(FieldPhone),
		},
		Street:       get(FieldStreet),
		Number:       get(FieldNumber),
		Complement:   get(FieldComplement),
		Neighborhood: get(FieldNeighborhood),
		City:         get(FieldCity),
		State:        get(FieldState),
		PostalCode:   get(FieldPostalCode),
	}
}

// installments reads the instalment count; empty means a single payment.
func installments(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > domain.MaxInstallments {
		return 0, domain.NewValidationError(FieldInstallments,
			fmt.Sprintf("installments must be a whole number from 1 to %d", domain.MaxInstallments))
	}
	return n, nil
}

func cardDetails(values map[string]string) domain.CardDetails {
	return domain.CardDetails{
		Number: strings.TrimSpace(values[FieldCardNumber]),
		Holder: strings.TrimSpace(values[FieldCardName]),
		Expiry: strings.TrimSpace(values[FieldExpiry]),
		CVV:    strings.TrimSpace(values[FieldCVV]),
	}
}
