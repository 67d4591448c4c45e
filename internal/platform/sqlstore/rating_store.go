package sqlstore

import (
	"context"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// RatingStore implements store.RatingStore.
type RatingStore struct {
	db store.DBTX
}

var _ store.RatingStore = (*RatingStore)(nil)

// NewRatingStore creates a RatingStore on db.
func NewRatingStore(db store.DBTX) *RatingStore {
	return &RatingStore{db: db}
}

// WithTx returns a store using tx.
func (s *RatingStore) WithTx(tx store.DBTX) store.RatingStore {
	return &RatingStore{db: tx}
}

// SaveURLRating inserts r and sets its ID.
func (s *RatingStore) SaveURLRating(ctx context.Context, r *domain.URLRating) error {
	m := &urlRatingModel{
		URLID:       r.URLID,
		Rating:      r.Rating,
		High:        r.High,
		Medium:      r.Medium,
		Low:         r.Low,
		RatedAt:     r.When.UTC(),
		Calculation: string(r.Calculation),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	r.ID = m.ID
	return nil
}

// SaveOrganizationRating inserts r and sets its ID.
func (s *RatingStore) SaveOrganizationRating(ctx context.Context, r *domain.OrganizationRating) error {
	m := &organizationRatingModel{
		OrganizationID: r.OrganizationID,
		Rating:         r.Rating,
		High:           r.High,
		Medium:         r.Medium,
		Low:            r.Low,
		RatedAt:        r.When.UTC(),
		Calculation:    string(r.Calculation),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	r.ID = m.ID
	return nil
}

// LatestOrganizationRating returns the newest rating of an organization at or before when.
func (s *RatingStore) LatestOrganizationRating(ctx context.Context, organizationID int64, when time.Time) (*domain.OrganizationRating, error) {
	var m organizationRatingModel
	err := s.db.NewSelect().Model(&m).
		Where("organization_id = ?", organizationID).
		Where("rated_at <= ?", when.UTC()).
		OrderExpr("rated_at DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapEntityError(err, store.ErrRatingNotFound, nil)
	}
	return m.toDomain(), nil
}

const latestOrganizationRatingsQuery = `
SELECT r.id, r.organization_id, r.rating, r.high, r.medium, r.low, r.rated_at, r.calculation
FROM organization_ratings AS r
JOIN (
	SELECT organization_id, MAX(rated_at) AS rated_at
	FROM organization_ratings
	WHERE rated_at <= ?
	GROUP BY organization_id
) AS latest ON latest.organization_id = r.organization_id AND latest.rated_at = r.rated_at
ORDER BY r.organization_id ASC, r.id DESC`

// LatestOrganizationRatings returns the newest rating per organization at or before when.
func (s *RatingStore) LatestOrganizationRatings(ctx context.Context, when time.Time) ([]*domain.OrganizationRating, error) {
	var models []organizationRatingModel
	if err := s.db.NewRaw(latestOrganizationRatingsQuery, when.UTC()).Scan(ctx, &models); err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.OrganizationRating, 0, len(models))
	seen := make(map[int64]bool, len(models))
	for i := range models {
		// Ratings sharing a timestamp: the highest id wins.
		if seen[models[i].OrganizationID] {
			continue
		}
		seen[models[i].OrganizationID] = true
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

const latestURLRatingsQuery = `
SELECT r.id, r.url_id, r.rating, r.high, r.medium, r.low, r.rated_at, r.calculation
FROM url_ratings AS r
JOIN (
	SELECT url_id, MAX(rated_at) AS rated_at
	FROM url_ratings
	WHERE rated_at <= ?
	GROUP BY url_id
) AS latest ON latest.url_id = r.url_id AND latest.rated_at = r.rated_at
ORDER BY r.url_id ASC, r.id DESC`

// LatestURLRatings returns the newest rating per url at or before when.
func (s *RatingStore) LatestURLRatings(ctx context.Context, when time.Time) ([]*domain.URLRating, error) {
	var models []urlRatingModel
	if err := s.db.NewRaw(latestURLRatingsQuery, when.UTC()).Scan(ctx, &models); err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.URLRating, 0, len(models))
	seen := make(map[int64]bool, len(models))
	for i := range models {
		if seen[models[i].URLID] {
			continue
		}
		seen[models[i].URLID] = true
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

// ListOrganizationRatings returns the rating history of an organization, oldest first.
func (s *RatingStore) ListOrganizationRatings(ctx context.Context, organizationID int64) ([]*domain.OrganizationRating, error) {
	var models []organizationRatingModel
	err := s.db.NewSelect().Model(&models).
		Where("organization_id = ?", organizationID).
		OrderExpr("rated_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.OrganizationRating, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}
