package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

// User is an admin site account.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	HashedPassword string     `json:"-"`
	IsStaff        bool       `json:"is_staff"`
	IsSuperuser    bool       `json:"is_superuser"`
	IsActive       bool       `json:"is_active"`
	DateJoined     time.Time  `json:"date_joined"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// NewUser creates an active user. The caller hashes the password.
func NewUser(username string, hashedPassword string) (*User, error) {
	u := &User{
		Username:       username,
		HashedPassword: hashedPassword,
		IsActive:       true,
		DateJoined:     time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the user's invariants.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyUsername)
	}
	if !usernamePattern.MatchString(u.Username) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidUsername)
	}
	if u.HashedPassword == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPassword)
	}
	return nil
}

// CanAccessAdmin reports whether the user may log in to the admin site.
func (u *User) CanAccessAdmin() bool {
	return u.IsActive && (u.IsStaff || u.IsSuperuser)
}

// Session is a server-side admin login, referenced by the signed session cookie.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession starts a session for userID lasting lifetime.
func NewSession(userID int64, lifetime time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
