package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/domain/rating"
	"github.com/fossabot/failmap/internal/store"
)

// RebuildResult summarises a rating rebuild.
type RebuildResult struct {
	Organizations int `json:"organizations"`
	URLs          int `json:"urls"`
}

// DefaultRatingsResult summarises a default rating check.
type DefaultRatingsResult struct {
	Created int `json:"created"`
}

// farFuture bounds "latest rating ever" lookups.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// RebuildRatings recalculates the url and organization ratings of the
// selected organizations from their latest scans. Each organization is
// rated in its own transaction.
func (s *Scanner) RebuildRatings(ctx context.Context, f Filter) (*RebuildResult, error) {
	orgs, err := Resolve(ctx, s.stores.Organizations, f)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organizations: %w", err)
	}

	result := &RebuildResult{}
	rated := make(map[int64]rating.URLCalculation)
	now := s.now()

	for _, o := range orgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := s.inTx(ctx, func(ctx context.Context, stores store.Stores) error {
			n, err := s.rateOrganization(ctx, stores, o, now, rated)
			result.URLs += n
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to rate %s: %w", o.Name, err)
		}
		result.Organizations++
	}

	s.logger.InfoContext(ctx, "ratings rebuilt",
		slog.Int("organizations", result.Organizations),
		slog.Int("urls", result.URLs))
	return result, nil
}

// rateOrganization stores fresh url ratings and the resulting organization
// rating. Urls already rated in this run are reused. It returns the number
// of url ratings written.
func (s *Scanner) rateOrganization(
	ctx context.Context,
	stores store.Stores,
	o *domain.Organization,
	now time.Time,
	rated map[int64]rating.URLCalculation,
) (int, error) {
	urls, err := stores.URLs.ListByOrganization(ctx, o.ID, false)
	if err != nil {
		return 0, err
	}

	written := 0
	calcs := make([]rating.URLCalculation, 0, len(urls))
	for _, u := range urls {
		if calc, ok := rated[u.ID]; ok {
			calcs = append(calcs, calc)
			continue
		}

		endpoints, err := stores.Endpoints.ListByURL(ctx, u.ID, false)
		if err != nil {
			return written, err
		}
		ids := make([]int64, len(endpoints))
		for i, e := range endpoints {
			ids[i] = e.ID
		}
		scans, err := stores.Scans.ListByEndpoints(ctx, ids, now)
		if err != nil {
			return written, err
		}

		calc := s.calculator.URL(u, endpoints, scans)
		r, err := calc.URLRating(now)
		if err != nil {
			return written, err
		}
		if err := stores.Ratings.SaveURLRating(ctx, r); err != nil {
			return written, err
		}
		written++
		rated[u.ID] = calc
		calcs = append(calcs, calc)
	}

	r, err := s.calculator.Organization(o, calcs).OrganizationRating(now)
	if err != nil {
		return written, err
	}
	return written, stores.Ratings.SaveOrganizationRating(ctx, r)
}

// DefaultRatings gives every selected organization without any rating an
// empty one dated at its creation, so it shows up on the map.
func (s *Scanner) DefaultRatings(ctx context.Context, f Filter) (*DefaultRatingsResult, error) {
	orgs, err := Resolve(ctx, s.stores.Organizations, f)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organizations: %w", err)
	}

	result := &DefaultRatingsResult{}
	for _, o := range orgs {
		_, err := s.stores.Ratings.LatestOrganizationRating(ctx, o.ID, farFuture)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrRatingNotFound) {
			return result, err
		}

		when := o.CreatedOn
		if when.IsZero() {
			when = s.now()
		}
		if err := s.stores.Ratings.SaveOrganizationRating(ctx, rating.DefaultOrganizationRating(o, when)); err != nil {
			return result, err
		}
		result.Created++
		s.logger.InfoContext(ctx, "default rating created", slog.String("organization", o.Name))
	}
	return result, nil
}
