package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/store"
	"github.com/uptrace/bun"
)

// OrganizationStore implements store.OrganizationStore.
type OrganizationStore struct {
	db store.DBTX
}

var _ store.OrganizationStore = (*OrganizationStore)(nil)

// NewOrganizationStore creates an OrganizationStore on db.
func NewOrganizationStore(db store.DBTX) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// WithTx returns a store using tx.
func (s *OrganizationStore) WithTx(tx store.DBTX) store.OrganizationStore {
	return &OrganizationStore{db: tx}
}

// Create inserts org and sets its ID.
func (s *OrganizationStore) Create(ctx context.Context, org *domain.Organization) error {
	if err := org.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	m := newOrganizationModel(org)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		logger.FromContext(ctx).Error("failed to create organization", "name", org.Name, "error", err)
		return mapEntityError(err, nil, nil)
	}
	org.ID = m.ID
	return nil
}

// Update saves all mutable fields of org.
func (s *OrganizationStore) Update(ctx context.Context, org *domain.Organization) error {
	if err := org.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	res, err := s.db.NewUpdate().Model(newOrganizationModel(org)).WherePK().Exec(ctx)
	if err != nil {
		return mapEntityError(err, store.ErrOrganizationNotFound, nil)
	}
	return CheckRowsAffected(res, store.ErrOrganizationNotFound)
}

// GetByID loads an organization.
func (s *OrganizationStore) GetByID(ctx context.Context, id int64) (*domain.Organization, error) {
	var m organizationModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrOrganizationNotFound, nil)
	}
	return m.toDomain(), nil
}

// GetByName loads a living organization by case-insensitive name.
func (s *OrganizationStore) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	var m organizationModel
	err := s.db.NewSelect().Model(&m).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("is_dead = ?", false).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapEntityError(err, store.ErrOrganizationNotFound, nil)
	}
	return m.toDomain(), nil
}

// List returns organizations matching filter ordered by name.
func (s *OrganizationStore) List(ctx context.Context, filter store.OrganizationFilter) ([]*domain.Organization, error) {
	var models []organizationModel
	q := s.db.NewSelect().Model(&models).OrderExpr("name ASC, id ASC")
	if !filter.IncludeDead {
		q = q.Where("is_dead = ?", false)
	}
	if len(filter.Names) > 0 {
		names := make([]string, len(filter.Names))
		for i, n := range filter.Names {
			names[i] = strings.ToLower(strings.TrimSpace(n))
		}
		q = q.Where("LOWER(name) IN (?)", bun.In(names))
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN (?)", bun.In(filter.IDs))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.Organization, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

// EnsureType returns the organization type named name, creating it when missing.
func (s *OrganizationStore) EnsureType(ctx context.Context, name string) (*domain.OrganizationType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyName)
	}

	var m organizationTypeModel
	err := s.db.NewSelect().Model(&m).Where("name = ?", name).Limit(1).Scan(ctx)
	if err == nil {
		return &domain.OrganizationType{ID: m.ID, Name: m.Name}, nil
	}
	if mapped := MapError(err); !store.IsNotFoundError(mapped) {
		return nil, mapped
	}

	m = organizationTypeModel{Name: name}
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return nil, MapError(err)
	}
	return &domain.OrganizationType{ID: m.ID, Name: m.Name}, nil
}

// GetType loads an organization type.
func (s *OrganizationStore) GetType(ctx context.Context, id int64) (*domain.OrganizationType, error) {
	var m organizationTypeModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapEntityError(err, fmt.Errorf("%w: organization type", store.ErrNotFound), nil)
	}
	return &domain.OrganizationType{ID: m.ID, Name: m.Name}, nil
}
