package sqlstore

import (
	"context"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
	"github.com/uptrace/bun"
)

// ScanStore implements store.ScanStore.
type ScanStore struct {
	db store.DBTX
}

var _ store.ScanStore = (*ScanStore)(nil)

// NewScanStore creates a ScanStore on db.
func NewScanStore(db store.DBTX) *ScanStore {
	return &ScanStore{db: db}
}

// WithTx returns a store using tx.
func (s *ScanStore) WithTx(tx store.DBTX) store.ScanStore {
	return &ScanStore{db: tx}
}

// Record stores scan, or refreshes the latest scan of the same endpoint and
// type when its rating did not change.
func (s *ScanStore) Record(ctx context.Context, scan *domain.Scan) error {
	latest, err := s.Latest(ctx, scan.EndpointID, scan.Type)
	switch {
	case err == nil && latest.Rating == scan.Rating:
		_, err := s.db.NewUpdate().Model((*scanModel)(nil)).
			Set("last_scan_moment = ?", scan.LastScanMoment.UTC()).
			Set("explanation = ?", scan.Explanation).
			Where("id = ?", latest.ID).
			Exec(ctx)
		if err != nil {
			return MapError(err)
		}
		scan.ID = latest.ID
		scan.RatingDeterminedOn = latest.RatingDeterminedOn
		return nil
	case err != nil && !store.IsNotFoundError(err):
		return err
	}

	m := newScanModel(scan)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return MapError(err)
	}
	scan.ID = m.ID
	return nil
}

// Latest returns the most recently determined scan of scanType on an endpoint.
func (s *ScanStore) Latest(ctx context.Context, endpointID int64, scanType string) (*domain.Scan, error) {
	var m scanModel
	err := s.db.NewSelect().Model(&m).
		Where("endpoint_id = ?", endpointID).
		Where("type = ?", scanType).
		OrderExpr("rating_determined_on DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapEntityError(err, store.ErrScanNotFound, nil)
	}
	return m.toDomain(), nil
}

// ListByEndpoints returns the scans of the given endpoints determined at or before when.
func (s *ScanStore) ListByEndpoints(ctx context.Context, endpointIDs []int64, when time.Time) ([]*domain.Scan, error) {
	if len(endpointIDs) == 0 {
		return []*domain.Scan{}, nil
	}
	var models []scanModel
	err := s.db.NewSelect().Model(&models).
		Where("endpoint_id IN (?)", bun.In(endpointIDs)).
		Where("rating_determined_on <= ?", when.UTC()).
		OrderExpr("endpoint_id ASC, rating_determined_on ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.Scan, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

// ListRecentByType returns the scans of scanType ordered by the moment their
// rating was determined, newest first.
func (s *ScanStore) ListRecentByType(ctx context.Context, scanType string, limit int) ([]*domain.Scan, error) {
	var models []scanModel
	err := s.db.NewSelect().Model(&models).
		Where("type = ?", scanType).
		OrderExpr("rating_determined_on DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := make([]*domain.Scan, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}
