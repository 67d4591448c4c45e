package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// dummyHash is compared against when the username is unknown so that both
// failure paths cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZvQ6A2pbJ5pEVGUxwQYyYi"

// hmacSessionService is an implementation of SessionService using HMAC-SHA signed tokens.
type hmacSessionService struct {
	users      store.UserStore
	sessions   store.SessionStore
	verifier   PasswordVerifier
	signingKey []byte
	lifetime   time.Duration
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration
}

// sessionClaims defines the structure of the token claims we use
type sessionClaims struct {
	SessionID uuid.UUID `json:"sid"`
	UserID    int64     `json:"uid"`
	jwt.RegisteredClaims
}

// Ensure hmacSessionService implements SessionService interface
var _ SessionService = (*hmacSessionService)(nil)

// NewSessionService creates a session service signing tokens with cfg.SecretKey.
func NewSessionService(
	cfg config.AuthConfig,
	users store.UserStore,
	sessions store.SessionStore,
	verifier PasswordVerifier,
) (SessionService, error) {
	if len(cfg.SecretKey) < 16 {
		return nil, fmt.Errorf("secret key must be at least 16 characters")
	}
	if cfg.SessionLifetimeMinutes <= 0 {
		return nil, fmt.Errorf("session lifetime must be positive")
	}
	return &hmacSessionService{
		users:      users,
		sessions:   sessions,
		verifier:   verifier,
		signingKey: []byte(cfg.SecretKey),
		lifetime:   time.Duration(cfg.SessionLifetimeMinutes) * time.Minute,
		timeFunc:   time.Now,
		clockSkew:  2 * time.Minute,
	}, nil
}

// Login implements SessionService.
func (s *hmacSessionService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	log := logger.FromContext(ctx)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return "", nil, fmt.Errorf("failed to look up user: %w", err)
		}
		_ = s.verifier.Compare(dummyHash, password)
		log.Info("login failed: unknown user")
		return "", nil, ErrInvalidCredentials
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Info("login failed: wrong password", "user_id", user.ID)
		return "", nil, ErrInvalidCredentials
	}
	if !user.CanAccessAdmin() {
		log.Info("login refused: no admin access", "user_id", user.ID)
		return "", nil, ErrAccessDenied
	}

	now := s.timeFunc().UTC()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	token, err := s.sign(session)
	if err != nil {
		log.Error("failed to sign session token",
			"error", err,
			"user_id", user.ID,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", nil, err
	}

	log.Info("user logged in", "user_id", user.ID, "session_expires", session.ExpiresAt)
	return token, user, nil
}

func (s *hmacSessionService) sign(session *domain.Session) (string, error) {
	claims := sessionClaims{
		SessionID: session.ID,
		UserID:    session.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", session.UserID),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			ID:        session.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token with HMAC-SHA256: %w", err)
	}
	return signed, nil
}

// parse validates the token signature and time claims.
func (s *hmacSessionService) parse(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	now := s.timeFunc()
	token, err := jwt.ParseWithClaims(
		tokenString,
		&sessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("session token expired", "error", err)
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("session token not yet valid", "error", err)
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("session token invalid", "error", err, "error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.SessionID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	out := &Claims{SessionID: claims.SessionID, UserID: claims.UserID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Authenticate implements SessionService.
func (s *hmacSessionService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	claims, err := s.parse(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil, ErrExpiredToken
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Expired(s.timeFunc()) {
		return nil, nil, ErrExpiredToken
	}
	if session.UserID != claims.UserID {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CanAccessAdmin() {
		return nil, nil, ErrAccessDenied
	}
	return user, session, nil
}

// Logout implements SessionService.
func (s *hmacSessionService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(ctx, token)
	if err != nil {
		// Nothing to revoke for an unusable token.
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil && !store.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logger.FromContext(ctx).Info("user logged out", "user_id", claims.UserID)
	return nil
}

// PurgeExpired implements SessionService.
func (s *hmacSessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.timeFunc().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return n, nil
}
