package transport

import (
	"net/http"

	"furniture-store/internal/domain"
	"furniture-store/internal/middleware"
	"furniture-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignUpRequest represents the registration request payload
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=200"`
	TaxID    string `json:"tax_id" validate:"max=32"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by sign-up and login.
type AuthResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int             `json:"expires_in"`
	User         domain.Identity `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthHandler serves sign-up, sign-in, sessions and profiles.
type AuthHandler struct {
	auth   service.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RegisterRoutes mounts /api/auth and /api/profiles. limiter wraps the
// public credential routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, limiter func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/signup", h.SignUp)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
			r.Get("/profile", h.OwnProfile)
		})
	})

	r.With(authMiddleware).Get("/api/profiles/{id}", h.GetProfile)
}

// SignUp registers an account and signs it in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Sign-up validation failed", zap.Error(err))
		middleware.RespondWithRequestError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password, domain.SignUpMetadata{
		FullName: req.FullName,
		TaxID:    req.TaxID,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, authResponse(result))
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithRequestError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("Login rejected", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("User logged in", zap.String("user_id", result.User.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, authResponse(result))
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	access, expiresIn, err := h.auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{
		AccessToken: access,
		ExpiresIn:   int(expiresIn.Seconds()),
	})
}

// Logout revokes the refresh token in the body.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the identity behind the access token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, domain.Identity{ID: user.ID, Email: user.Email})
}

// OwnProfile returns the caller's profile.
func (h *AuthHandler) OwnProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	h.writeProfile(w, r, userID)
}

// GetProfile returns the profile of {id}. Only the owner and admins may
// read it.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithRequestError(w, domain.NewValidationError("id", "invalid profile id"))
		return
	}

	if id != callerID {
		role, err := h.auth.Role(r.Context(), callerID)
		if err != nil || role != domain.RoleAdmin {
			middleware.RespondWithError(w, http.StatusNotFound, "profile not found")
			return
		}
	}
	h.writeProfile(w, r, id)
}

func (h *AuthHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func authResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    int(result.ExpiresIn.Seconds()),
		User:         domain.Identity{ID: result.User.ID, Email: result.User.Email},
	}
}
