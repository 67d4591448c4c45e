package sqlstore

import (
	"context"
	"fmt"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// URLStore implements store.URLStore.
type URLStore struct {
	db store.DBTX
}

var _ store.URLStore = (*URLStore)(nil)

// NewURLStore creates a URLStore on db.
func NewURLStore(db store.DBTX) *URLStore {
	return &URLStore{db: db}
}

// WithTx returns a store using tx.
func (s *URLStore) WithTx(tx store.DBTX) store.URLStore {
	return &URLStore{db: tx}
}

// Create inserts u and links it to its organizations.
func (s *URLStore) Create(ctx context.Context, u *domain.URL) error {
	host, err := domain.NormalizeURL(u.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	u.URL = host

	m := &urlModel{URL: u.URL, IsDead: u.IsDead, NotResolvable: u.NotResolvable, CreatedOn: u.CreatedOn.UTC()}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return mapEntityError(err, nil, fmt.Errorf("%w: url %s", store.ErrDuplicate, u.URL))
	}
	u.ID = m.ID

	for _, orgID := range u.OrganizationIDs {
		if err := s.AddOrganization(ctx, u.ID, orgID); err != nil {
			return err
		}
	}
	return nil
}

// Update saves the liveness flags of u.
func (s *URLStore) Update(ctx context.Context, u *domain.URL) error {
	res, err := s.db.NewUpdate().Model((*urlModel)(nil)).
		Set("is_dead = ?", u.IsDead).
		Set("not_resolvable = ?", u.NotResolvable).
		Where("id = ?", u.ID).
		Exec(ctx)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrURLNotFound)
}

// GetByID loads a url with its organization IDs.
func (s *URLStore) GetByID(ctx context.Context, id int64) (*domain.URL, error) {
	var m urlModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrURLNotFound, nil)
	}
	return s.withOrganizations(ctx, &m)
}

// GetByURL loads a url by hostname.
func (s *URLStore) GetByURL(ctx context.Context, url string) (*domain.URL, error) {
	host, err := domain.NormalizeURL(url)
	if err != nil {
		return nil, store.ErrURLNotFound
	}
	var m urlModel
	if err := s.db.NewSelect().Model(&m).Where("url = ?", host).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrURLNotFound, nil)
	}
	return s.withOrganizations(ctx, &m)
}

func (s *URLStore) withOrganizations(ctx context.Context, m *urlModel) (*domain.URL, error) {
	var ids []int64
	err := s.db.NewSelect().Model((*urlOrganizationModel)(nil)).
		Column("organization_id").
		Where("url_id = ?", m.ID).
		OrderExpr("organization_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, MapError(err)
	}
	return m.toDomain(ids), nil
}

// AddOrganization links a url to an organization.
func (s *URLStore) AddOrganization(ctx context.Context, urlID, organizationID int64) error {
	link := &urlOrganizationModel{URLID: urlID, OrganizationID: organizationID}
	if _, err := s.db.NewInsert().Model(link).Ignore().Exec(ctx); err != nil {
		return MapError(err)
	}
	return nil
}

// ListByOrganization returns the urls of an organization ordered by url.
func (s *URLStore) ListByOrganization(ctx context.Context, organizationID int64, includeDead bool) ([]*domain.URL, error) {
	var models []urlModel
	q := s.db.NewSelect().Model(&models).
		Where("id IN (?)", s.db.NewSelect().Model((*urlOrganizationModel)(nil)).
			Column("url_id").
			Where("organization_id = ?", organizationID)).
		OrderExpr("url ASC")
	if !includeDead {
		q = q.Where("is_dead = ?", false)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.URL, 0, len(models))
	for i := range models {
		u, err := s.withOrganizations(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

