package auth

import (
	"context"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/google/uuid"
)

// SessionService logs admin users in and out and resolves session tokens.
type SessionService interface {
	// Login checks the credentials, creates a session row and returns a signed
	// token referencing it. Returns ErrInvalidCredentials or ErrAccessDenied.
	Login(ctx context.Context, username, password string) (string, *domain.User, error)

	// Authenticate validates token and returns the user and session it
	// belongs to. Expired or deleted sessions yield ErrExpiredToken.
	Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error)

	// Logout deletes the session referenced by token. Unknown sessions are ignored.
	Logout(ctx context.Context, token string) error

	// PurgeExpired deletes expired sessions and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Claims represents the custom claims structure of a session token.
type Claims struct {
	// SessionID references the sessions row backing the token.
	SessionID uuid.UUID `json:"sid"`

	// UserID is the user the session was created for.
	UserID int64 `json:"uid"`

	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}
