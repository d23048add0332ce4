package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the storefront role of an identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// User is an account stored by the backend.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the user_profiles record that carries the authoritative role.
type Profile struct {
	UserID    uuid.UUID `json:"id" db:"id"`
	Role      Role      `json:"role" db:"role"`
	FullName  string    `json:"full_name" db:"full_name"`
	TaxID     string    `json:"tax_id" db:"tax_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RefreshToken is a long-lived token that can mint new access tokens.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}

// Identity is the authenticated principal as seen by the storefront.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// SignUpMetadata carries the profile fields collected at registration.
type SignUpMetadata struct {
	FullName string `json:"full_name"`
	TaxID    string `json:"tax_id"`
}

// IdentityEventKind names an identity change emitted by the auth provider.
type IdentityEventKind string

const (
	IdentityRestored  IdentityEventKind = "restored"
	IdentitySignedIn  IdentityEventKind = "signed_in"
	IdentitySignedOut IdentityEventKind = "signed_out"
)

// IdentityEvent is one identity change. Identity is nil on sign-out.
type IdentityEvent struct {
	Kind     IdentityEventKind
	Identity *Identity
}
