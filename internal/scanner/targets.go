package scanner

import (
	"context"
	"fmt"

	"github.com/fossabot/failmap/internal/domain"
)

// target is a live endpoint together with the url it belongs to.
type target struct {
	url      *domain.URL
	endpoint *domain.Endpoint
}

// targets collects the live endpoints of the organizations selected by f.
// Endpoints shared between organizations are returned once. IPv6 endpoints
// are counted as skipped when the network cannot reach them.
func (s *Scanner) targets(ctx context.Context, f Filter) ([]target, int, error) {
	orgs, err := Resolve(ctx, s.stores.Organizations, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve organizations: %w", err)
	}

	var (
		out     []target
		skipped int
		seen    = make(map[int64]bool)
	)
	for _, o := range orgs {
		urls, err := s.stores.URLs.ListByOrganization(ctx, o.ID, false)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list urls of %s: %w", o.Name, err)
		}
		for _, u := range urls {
			if u.NotResolvable {
				continue
			}
			endpoints, err := s.stores.Endpoints.ListByURL(ctx, u.ID, false)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to list endpoints of %s: %w", u.URL, err)
			}
			for _, e := range endpoints {
				if seen[e.ID] {
					continue
				}
				seen[e.ID] = true
				if e.IsIPv6() && !s.ipv6 {
					skipped++
					continue
				}
				out = append(out, target{url: u, endpoint: e})
			}
		}
	}
	return out, skipped, nil
}

// record stores a scan result stamped with the scanner clock.
func (s *Scanner) record(ctx context.Context, e *domain.Endpoint, scanType string, passed bool, explanation string) error {
	scan, err := domain.NewScan(e.ID, scanType, passed, explanation)
	if err != nil {
		return err
	}
	now := s.now()
	scan.LastScanMoment = now
	scan.RatingDeterminedOn = now
	if err := s.stores.Scans.Record(ctx, scan); err != nil {
		return fmt.Errorf("failed to record %s scan of endpoint %d: %w", scanType, e.ID, err)
	}
	return nil
}
