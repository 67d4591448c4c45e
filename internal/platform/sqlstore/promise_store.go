package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// PromiseStore implements store.PromiseStore.
type PromiseStore struct {
	db store.DBTX
}

var _ store.PromiseStore = (*PromiseStore)(nil)

// NewPromiseStore creates a PromiseStore on db.
func NewPromiseStore(db store.DBTX) *PromiseStore {
	return &PromiseStore{db: db}
}

// WithTx returns a store using tx.
func (s *PromiseStore) WithTx(tx store.DBTX) store.PromiseStore {
	return &PromiseStore{db: tx}
}

// Create inserts p and sets its ID.
func (s *PromiseStore) Create(ctx context.Context, p *domain.Promise) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	m := &promiseModel{
		OrganizationID: p.OrganizationID,
		CreatedOn:      p.CreatedOn.UTC(),
		ExpiresOn:      p.ExpiresOn.UTC(),
		Notes:          p.Notes,
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	p.ID = m.ID
	return nil
}

// LatestActive returns the most recently made promise of an organization
// that is still running at now.
func (s *PromiseStore) LatestActive(ctx context.Context, organizationID int64, now time.Time) (*domain.Promise, error) {
	var m promiseModel
	err := s.db.NewSelect().Model(&m).
		Where("organization_id = ?", organizationID).
		Where("created_on <= ?", now.UTC()).
		Where("expires_on > ?", now.UTC()).
		OrderExpr("created_on DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapEntityError(err, store.ErrPromiseNotFound, nil)
	}
	return m.toDomain(), nil
}

// ListByOrganization returns all promises of an organization, newest first.
func (s *PromiseStore) ListByOrganization(ctx context.Context, organizationID int64) ([]*domain.Promise, error) {
	var models []promiseModel
	err := s.db.NewSelect().Model(&models).
		Where("organization_id = ?", organizationID).
		OrderExpr("created_on DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.Promise, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}
