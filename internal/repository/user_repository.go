package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
	ErrProfileNotFound   = errors.New("profile not found")
)

// UserRepository stores accounts and their profiles.
type UserRepository interface {
	// Create inserts the user and its profile atomically.
	Create(ctx context.Context, user *domain.User, profile *domain.Profile) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	UpdateRole(ctx context.Context, userID uuid.UUID, role domain.Role) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "users_email_key") {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_profiles (id, role, full_name, tax_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, profile.UserID, profile.Role, profile.FullName, profile.TaxID, profile.CreatedAt, profile.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, "id", id)
}

// findOne looks a user up by a fixed column name; column is never user input.
func (r *userRepository) findOne(ctx context.Context, column string, value any) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE ` + column + ` = $1
	`

	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	return user, nil
}

func (r *userRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, role, full_name, tax_id, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`, userID).Scan(
		&profile.UserID,
		&profile.Role,
		&profile.FullName,
		&profile.TaxID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	result, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET role = $2 WHERE id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}
