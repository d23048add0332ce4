package middleware

import (
	"context"
	"net/http"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoleLookup resolves the current role of a user from the profile table.
type RoleLookup interface {
	Role(ctx context.Context, userID uuid.UUID) (domain.Role, error)
}

// RequireAdmin lets a request through only when the caller is an admin.
// With a RoleLookup the profile table decides, so role changes apply
// without a new token; without one the token role is used.
func RequireAdmin(roles RoleLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				logger.Warn("User not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			role, _ := GetUserRole(r.Context())
			if roles != nil {
				current, err := roles.Role(r.Context(), userID)
				if err != nil {
					logger.Warn("Failed to resolve role, treating caller as customer",
						zap.String("user_id", userID.String()),
						zap.Error(err),
					)
					current = domain.RoleCustomer
				}
				role = current
			}

			if role != domain.RoleAdmin {
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("user_id", userID.String()),
					zap.String("role", string(role)),
				)
				RespondWithError(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserRoleKey, role)))
		})
	}
}
