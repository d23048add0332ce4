package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"furniture-store/internal/domain"
	"furniture-store/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashes.
	BcryptCost = 10

	// MinPasswordLength is the shortest password accepted at sign-up.
	MinPasswordLength = 6

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = domain.NewRejection(domain.ErrUnauthorized, "invalid email or password")
	ErrInvalidToken       = domain.NewRejection(domain.ErrUnauthorized, "invalid token")
	ErrTokenExpired       = domain.NewRejection(domain.ErrUnauthorized, "token has expired")
	ErrEmailTaken         = domain.NewRejection(domain.ErrConflict, "an account with this email already exists")
)

// AuthResult is the outcome of a successful sign-up or sign-in.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         *domain.User
	Profile      *domain.Profile
}

// AuthService authenticates storefront users and serves their profiles.
type AuthService interface {
	Register(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, expiresIn time.Duration, err error)
	ValidateToken(tokenString string) (*Claims, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	// Role returns the profile role, the authority for admin checks.
	Role(ctx context.Context, userID uuid.UUID) (domain.Role, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig configures token signing and lifetimes.
type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type authService struct {
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	cfg    AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	cfg AuthConfig,
	logger *zap.Logger,
) AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{users: users, tokens: tokens, cfg: cfg, logger: logger, now: time.Now}
}

// Register creates a user with a customer profile and signs it in.
func (s *authService) Register(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*AuthResult, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidationError("email", "invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, domain.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &domain.Profile{
		UserID:    user.ID,
		Role:      domain.RoleCustomer,
		FullName:  strings.TrimSpace(meta.FullName),
		TaxID:     strings.TrimSpace(meta.TaxID),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return s.issue(ctx, user, profile)
}

// Login authenticates a user and returns JWT tokens
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.Profile(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		profile = &domain.Profile{UserID: user.ID, Role: domain.RoleCustomer}
	}
	return s.issue(ctx, user, profile)
}

// Logout invalidates the refresh token. Unknown tokens count as logged out.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken mints a new access token from a valid refresh token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	rt, err := s.tokens.FindActive(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", 0, ErrInvalidToken
		}
		return "", 0, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if s.now().After(rt.ExpiresAt) {
		return "", 0, ErrTokenExpired
	}

	role, err := s.Role(ctx, rt.UserID)
	if err != nil {
		return "", 0, err
	}
	access, err := s.accessToken(rt.UserID, role)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}
	return access, s.cfg.AccessTTL, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.users.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

// Role defaults to customer when the user has no profile.
func (s *authService) Role(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoleCustomer, nil
		}
		return "", err
	}
	return profile.Role, nil
}

func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) issue(ctx context.Context, user *domain.User, profile *domain.Profile) (*AuthResult, error) {
	access, err := s.accessToken(user.ID, profile.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := s.now().UTC()
	rt := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: rt.Token,
		ExpiresIn:    s.cfg.AccessTTL,
		User:         user,
		Profile:      profile,
	}, nil
}

func (s *authService) accessToken(userID uuid.UUID, role domain.Role) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
