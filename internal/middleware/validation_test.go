package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"furniture-store/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type productRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Category string `json:"category" validate:"required,category"`
	Stock    int    `json:"stock_quantity" validate:"gte=0"`
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Feature: storefront, Property 16: Unknown categories are rejected
// Validates: Catalog invariants, category set
func TestProperty_CategoryValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("only the fixed category set validates", prop.ForAll(
		func(category string) bool {
			err := ValidateRequest(productRequest{Name: "Sofá", Category: category})
			return (err == nil) == domain.Category(category).Valid()
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))

	for _, c := range domain.Categories {
		if err := ValidateRequest(productRequest{Name: "Sofá", Category: string(c)}); err != nil {
			t.Errorf("Category %s should validate: %v", c, err)
		}
	}
}

// Feature: storefront, Property 17: Validation errors name JSON fields
// Validates: Ambient error handling
func TestProperty_ValidationErrorsUseJSONNames(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("negative stock is reported as stock_quantity", prop.ForAll(
		func(stock int) bool {
			err := ValidateRequest(productRequest{Name: "Mesa", Category: "mesa", Stock: stock})
			errs := FormatValidationErrors(err)
			return len(errs) == 1 && errs[0].Field == "stock_quantity"
		},
		gen.IntRange(-1000, -1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"email":"ana@loja.com","password":"secret123"}`, ""},
		{"bad email", `{"email":"ana","password":"secret123"}`, "email"},
		{"short password", `{"email":"ana@loja.com","password":"123"}`, "password"},
		{"malformed json", `{"email":`, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var body signUpRequest
			err := DecodeAndValidate(w, req, &body)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			errs := FormatValidationErrors(err)
			if len(errs) == 0 || errs[0].Field != tt.wantField {
				t.Errorf("Expected error on %s, got %+v", tt.wantField, errs)
			}
		})
	}
}

func TestRespondWithRequestErrorFallsBack(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithRequestError(w, errors.New("http: request body too large"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "request body too large") {
		t.Errorf("Expected message in body, got %s", w.Body.String())
	}
}
