package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"furniture-store/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID string, role domain.Role, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     exp.Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Feature: storefront, Property 13: Protected endpoints reject missing tokens
// Validates: Backend HTTP API, auth
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without a bearer token are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/api/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "PATCH", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 14: Expired tokens are rejected
// Validates: Backend HTTP API, auth
func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(minutesAgo int, admin bool) bool {
			role := domain.RoleCustomer
			if admin {
				role = domain.RoleAdmin
			}
			token := signToken(t, testSecret, uuid.NewString(), role, time.Now().Add(-time.Duration(minutesAgo)*time.Minute))
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.IntRange(1, 10000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddlewareStoresUser(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, userID.String(), domain.RoleAdmin, time.Now().Add(time.Hour))

	var gotID uuid.UUID
	var gotRole domain.Role
	handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		gotRole, _ = GetUserRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if gotID != userID || gotRole != domain.RoleAdmin {
		t.Errorf("Unexpected context user %s/%s", gotID, gotRole)
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	valid := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		header string
	}{
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", uuid.NewString(), domain.RoleCustomer, valid)},
		{"malformed user id", "Bearer " + signToken(t, testSecret, "not-a-uuid", domain.RoleCustomer, valid)},
		{"garbage", "Bearer abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", w.Code)
			}
		})
	}
}

type stubRoles struct {
	roles map[uuid.UUID]domain.Role
	err   error
}

func (s *stubRoles) Role(_ context.Context, id uuid.UUID) (domain.Role, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

func TestRequireAdminUsesProfileRole(t *testing.T) {
	promoted := uuid.New()
	demoted := uuid.New()
	roles := &stubRoles{roles: map[uuid.UUID]domain.Role{
		promoted: domain.RoleAdmin,
		demoted:  domain.RoleCustomer,
	}}

	tests := []struct {
		name      string
		userID    uuid.UUID
		tokenRole domain.Role
		lookup    RoleLookup
		want      int
	}{
		{"profile admin with customer token", promoted, domain.RoleCustomer, roles, http.StatusOK},
		{"profile customer with admin token", demoted, domain.RoleAdmin, roles, http.StatusForbidden},
		{"missing profile", uuid.New(), domain.RoleAdmin, roles, http.StatusForbidden},
		{"lookup failure", promoted, domain.RoleAdmin, &stubRoles{err: errors.New("db down")}, http.StatusForbidden},
		{"token role without lookup", uuid.New(), domain.RoleAdmin, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAdmin(tt.lookup, zap.NewNop())(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
			req = req.WithContext(WithUser(req.Context(), tt.userID, tt.tokenRole))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRequireAdminWithoutUser(t *testing.T) {
	handler := RequireAdmin(nil, zap.NewNop())(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/products/1", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}
