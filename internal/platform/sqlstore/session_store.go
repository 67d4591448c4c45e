package sqlstore

import (
	"context"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
	"github.com/google/uuid"
)

// SessionStore implements store.SessionStore.
type SessionStore struct {
	db store.DBTX
}

var _ store.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore on db.
func NewSessionStore(db store.DBTX) *SessionStore {
	return &SessionStore{db: db}
}

// WithTx returns a store using tx.
func (s *SessionStore) WithTx(tx store.DBTX) store.SessionStore {
	return &SessionStore{db: tx}
}

// Create inserts session.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	m := &sessionModel{
		ID:        session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	return nil
}

// Get returns the session with id, expired or not.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var m sessionModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id.String()).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrSessionNotFound, nil)
	}
	return m.toDomain(), nil
}

// Delete removes the session with id.
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*sessionModel)(nil)).Where("id = ?", id.String()).Exec(ctx)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrSessionNotFound)
}

// DeleteExpired removes all sessions expired at now and reports how many went.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().Model((*sessionModel)(nil)).Where("expires_at <= ?", now.UTC()).Exec(ctx)
	if err != nil {
		return 0, MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}
