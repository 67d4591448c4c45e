package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// UserStore implements store.UserStore.
type UserStore struct {
	db store.DBTX
}

var _ store.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore on db.
func NewUserStore(db store.DBTX) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a store using tx.
func (s *UserStore) WithTx(tx store.DBTX) store.UserStore {
	return &UserStore{db: tx}
}

// Create inserts user and sets its ID. Returns store.ErrUsernameExists when
// the username is taken.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	m := newUserModel(user)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return mapEntityError(err, store.ErrUserNotFound, store.ErrUsernameExists)
	}
	user.ID = m.ID
	return nil
}

// Update saves all fields of user.
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	res, err := s.db.NewUpdate().Model(newUserModel(user)).WherePK().Exec(ctx)
	if err != nil {
		return mapEntityError(err, store.ErrUserNotFound, store.ErrUsernameExists)
	}
	return CheckRowsAffected(res, store.ErrUserNotFound)
}

// GetByID looks up a user by primary key.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrUserNotFound, nil)
	}
	return m.toDomain(), nil
}

// GetByUsername looks up a user by exact username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var m userModel
	if err := s.db.NewSelect().Model(&m).Where("username = ?", username).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrUserNotFound, nil)
	}
	return m.toDomain(), nil
}

// UpdateLastLogin stamps the last login time of a user.
func (s *UserStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*userModel)(nil)).
		Set("last_login = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrUserNotFound)
}
