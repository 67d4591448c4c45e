package auth

import (
	"context"
	"testing"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sessionFixture struct {
	svc      *hmacSessionService
	users    *memoryUserStore
	sessions *memorySessionStore
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	hasher := NewBcryptVerifier(bcrypt.MinCost)
	hash, err := hasher.Hash("faalkaart")
	require.NoError(t, err)

	admin, err := domain.NewUser("admin", hash)
	require.NoError(t, err)
	admin.IsStaff = true
	admin.IsSuperuser = true

	visitor, err := domain.NewUser("visitor", hash)
	require.NoError(t, err)

	f := &sessionFixture{
		users:    newMemoryUserStore(admin, visitor),
		sessions: newMemorySessionStore(),
		now:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewSessionService(config.AuthConfig{
		SecretKey:              "test-secret-that-is-long-enough",
		SessionLifetimeMinutes: 60,
	}, f.users, f.sessions, hasher)
	require.NoError(t, err)

	f.svc = svc.(*hmacSessionService)
	f.svc.timeFunc = func() time.Time { return f.now }
	return f
}

func TestNewSessionService_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSessionService(config.AuthConfig{SecretKey: "short", SessionLifetimeMinutes: 1}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewSessionService(config.AuthConfig{SecretKey: "long-enough-secret-key"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid admin", "admin", "faalkaart", nil},
		{"wrong password", "admin", "wrong", ErrInvalidCredentials},
		{"unknown user", "nobody", "faalkaart", ErrInvalidCredentials},
		{"no admin rights", "visitor", "faalkaart", ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newSessionFixture(t)

			token, user, err := f.svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				assert.Zero(t, f.sessions.count())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, tt.username, user.Username)
			require.NotNil(t, user.LastLogin)
			assert.Equal(t, 1, f.sessions.count())
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid session", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		token, _, err := f.svc.Login(ctx, "admin", "faalkaart")
		require.NoError(t, err)

		user, session, err := f.svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "admin", user.Username)
		assert.Equal(t, user.ID, session.UserID)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		token, _, err := f.svc.Login(ctx, "admin", "faalkaart")
		require.NoError(t, err)

		f.now = f.now.Add(2 * time.Hour)
		_, _, err = f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("revoked session", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		token, _, err := f.svc.Login(ctx, "admin", "faalkaart")
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, token))
		_, _, err = f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)

		// Logging out twice is harmless.
		assert.NoError(t, f.svc.Logout(ctx, token))
	})

	t.Run("tampered token", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		token, _, err := f.svc.Login(ctx, "admin", "faalkaart")
		require.NoError(t, err)

		_, _, err = f.svc.Authenticate(ctx, token+"x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		_, _, err := f.svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("user lost admin rights", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t)
		token, user, err := f.svc.Login(ctx, "admin", "faalkaart")
		require.NoError(t, err)

		user.IsActive = false
		require.NoError(t, f.users.Update(ctx, user))
		_, _, err = f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newSessionFixture(t)

	_, _, err := f.svc.Login(ctx, "admin", "faalkaart")
	require.NoError(t, err)

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(61 * time.Minute)
	n, err = f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
