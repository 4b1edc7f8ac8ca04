package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for user operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// User represents a registered account. DisplayLabel is a free-form community
// sub-type (e.g. "Technical Club") and plays no part in authorization.
// swagger:model User
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	DisplayLabel string    `json:"display_label,omitempty"`
	Verified     bool      `json:"verified"`
	LikedEvents  []string  `json:"liked_events"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser returns a new User with the given fields. ID is typically set by the repository on create.
func NewUser(email, name string, role Role, displayLabel string, createdAt, updatedAt time.Time) *User {
	return &User{
		Email:        email,
		Name:         name,
		Role:         role,
		DisplayLabel: displayLabel,
		LikedEvents:  []string{},
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// Caller returns the identity this user acts as.
func (u *User) Caller() Caller {
	return Caller{ID: u.ID, Role: u.Role}
}

// PasswordHasher handles salt generation, hashing, and verification.
// Implementations may use bcrypt, argon2, etc.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues bearer tokens for an authenticated user.
type TokenIssuer interface {
	Issue(user *User, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (Caller, error)
}

// UserRepository is the identity store.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	SetVerified(ctx context.Context, id string) error
	ListIDsByRole(ctx context.Context, role Role) ([]string, error)
	AddLikedEvent(ctx context.Context, userID, eventID string) error
	RemoveLikedEvent(ctx context.Context, userID, eventID string) error
}

// VerificationCodeRepository stores hashed one-time email verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, email, codeHash string) (consumed bool, err error)
}

// SignUpInput carries the fields of a new account.
type SignUpInput struct {
	Email        string
	Password     string
	Name         string
	Role         Role
	DisplayLabel string
}

// AuthService handles sign-up, login and email verification.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*User, error)
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
	RequestVerificationCode(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, code string) (*User, error)
	EnsureSuperAdmin(ctx context.Context, email, password string) (*User, error)
}

// UserService covers the caller's own profile and liked events.
type UserService interface {
	GetMe(ctx context.Context, caller Caller) (*User, error)
	UpdateProfile(ctx context.Context, caller Caller, name, displayLabel *string) (*User, error)
	LikeEvent(ctx context.Context, caller Caller, eventID string) error
	UnlikeEvent(ctx context.Context, caller Caller, eventID string) error
	ListLikedEvents(ctx context.Context, caller Caller) ([]*Event, error)
}
