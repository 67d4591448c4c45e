package scanner

import (
	"context"
	"log/slog"

	"github.com/fossabot/failmap/internal/domain"
)

// PlainHTTPResult summarises a plain http scan.
type PlainHTTPResult struct {
	Endpoints int `json:"endpoints"`
	Scans     int `json:"scans"`
	Skipped   int `json:"skipped"`
}

// ScanPlainHTTP rates http endpoints on whether their url offers https on
// the same ip version.
func (s *Scanner) ScanPlainHTTP(ctx context.Context, f Filter) (*PlainHTTPResult, error) {
	targets, skipped, err := s.targets(ctx, f)
	if err != nil {
		return nil, err
	}
	result := &PlainHTTPResult{Skipped: skipped}

	secure := make(map[int64]map[int]bool)
	for _, t := range targets {
		if t.endpoint.Protocol != domain.ProtocolHTTPS {
			continue
		}
		if secure[t.url.ID] == nil {
			secure[t.url.ID] = make(map[int]bool)
		}
		secure[t.url.ID][t.endpoint.IPVersion] = true
	}

	for _, t := range targets {
		if t.endpoint.Protocol != domain.ProtocolHTTP {
			continue
		}
		result.Endpoints++
		passed := secure[t.url.ID][t.endpoint.IPVersion]
		explanation := "Has a secure equivalent on a standard port."
		if !passed {
			explanation = "Site does not redirect to secure url, and has no secure alternative on a standard port."
		}
		if err := s.record(ctx, t.endpoint, domain.ScanPlainHTTPS, passed, explanation); err != nil {
			return result, err
		}
		result.Scans++
	}

	s.logger.InfoContext(ctx, "plain http scanned",
		slog.Int("endpoints", result.Endpoints),
		slog.Int("scans", result.Scans))
	return result, nil
}
