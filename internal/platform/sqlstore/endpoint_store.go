package sqlstore

import (
	"context"
	"fmt"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// EndpointStore implements store.EndpointStore.
type EndpointStore struct {
	db store.DBTX
}

var _ store.EndpointStore = (*EndpointStore)(nil)

// NewEndpointStore creates an EndpointStore on db.
func NewEndpointStore(db store.DBTX) *EndpointStore {
	return &EndpointStore{db: db}
}

// WithTx returns a store using tx.
func (s *EndpointStore) WithTx(tx store.DBTX) store.EndpointStore {
	return &EndpointStore{db: tx}
}

// Create inserts e and sets its ID.
func (s *EndpointStore) Create(ctx context.Context, e *domain.Endpoint) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	m := newEndpointModel(e)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	e.ID = m.ID
	return nil
}

// Update saves all fields of e.
func (s *EndpointStore) Update(ctx context.Context, e *domain.Endpoint) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	res, err := s.db.NewUpdate().Model(newEndpointModel(e)).WherePK().Exec(ctx)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrEndpointNotFound)
}

// GetByID loads an endpoint by id.
func (s *EndpointStore) GetByID(ctx context.Context, id int64) (*domain.Endpoint, error) {
	var m endpointModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrEndpointNotFound, nil)
	}
	return m.toDomain(), nil
}

// Find looks up an endpoint by its natural key.
func (s *EndpointStore) Find(ctx context.Context, urlID int64, protocol string, port, ipVersion int) (*domain.Endpoint, error) {
	var m endpointModel
	err := s.db.NewSelect().Model(&m).
		Where("url_id = ?", urlID).
		Where("protocol = ?", protocol).
		Where("port = ?", port).
		Where("ip_version = ?", ipVersion).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapEntityError(err, store.ErrEndpointNotFound, nil)
	}
	return m.toDomain(), nil
}

// ListByURL returns the endpoints of a url ordered by protocol, port and ip version.
func (s *EndpointStore) ListByURL(ctx context.Context, urlID int64, includeDead bool) ([]*domain.Endpoint, error) {
	var models []endpointModel
	q := s.db.NewSelect().Model(&models).
		Where("url_id = ?", urlID).
		OrderExpr("protocol ASC, port ASC, ip_version ASC")
	if !includeDead {
		q = q.Where("is_dead = ?", false)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.Endpoint, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}
