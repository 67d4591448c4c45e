package auth

import (
	"context"

	"github.com/fossabot/failmap/internal/domain"
)

// MockSessionService is a mock implementation of SessionService for testing.
type MockSessionService struct {
	LoginFunc        func(ctx context.Context, username, password string) (string, *domain.User, error)
	AuthenticateFunc func(ctx context.Context, token string) (*domain.User, *domain.Session, error)
	LogoutFunc       func(ctx context.Context, token string) error

	// Fixed fields for simple cases
	Token   string
	User    *domain.User
	Session *domain.Session
	Err     error
}

var _ SessionService = (*MockSessionService)(nil)

// Login implements SessionService.
func (m *MockSessionService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return m.Token, m.User, m.Err
}

// Authenticate implements SessionService.
func (m *MockSessionService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return m.User, m.Session, m.Err
}

// Logout implements SessionService.
func (m *MockSessionService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return m.Err
}

// PurgeExpired implements SessionService.
func (m *MockSessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, m.Err
}
