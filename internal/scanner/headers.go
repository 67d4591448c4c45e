package scanner

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/fossabot/failmap/internal/domain"
)

// HeadersResult summarises a security header scan.
type HeadersResult struct {
	Endpoints int `json:"endpoints"`
	Scans     int `json:"scans"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// headersFor lists the headers checked on an endpoint. HSTS only means
// something over https.
func headersFor(e *domain.Endpoint) []string {
	headers := []string{
		domain.ScanXFrameOptions,
		domain.ScanXContentTypeOptions,
		domain.ScanXXSSProtection,
	}
	if e.Protocol == domain.ProtocolHTTPS {
		headers = append([]string{domain.ScanStrictTransportSecurity}, headers...)
	}
	return headers
}

// ScanSecurityHeaders requests every selected endpoint and records one scan
// per security header. Unreachable endpoints are counted as errors and keep
// their previous scans.
func (s *Scanner) ScanSecurityHeaders(ctx context.Context, f Filter) (*HeadersResult, error) {
	targets, skipped, err := s.targets(ctx, f)
	if err != nil {
		return nil, err
	}
	result := &HeadersResult{Skipped: skipped}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		header, err := s.fetchHeaders(ctx, t)
		if err != nil {
			result.Errors++
			s.logger.WarnContext(ctx, "endpoint unreachable",
				slog.String("url", t.url.URL),
				slog.String("protocol", t.endpoint.Protocol),
				slog.Int("port", t.endpoint.Port),
				slog.String("error", err.Error()))
			continue
		}
		result.Endpoints++

		for _, name := range headersFor(t.endpoint) {
			present := header.Get(name) != ""
			explanation := name + " header present."
			if !present {
				explanation = "Security Header not present: " + name
			}
			if err := s.record(ctx, t.endpoint, name, present, explanation); err != nil {
				return result, err
			}
			result.Scans++
		}
	}

	s.logger.InfoContext(ctx, "security headers scanned",
		slog.Int("endpoints", result.Endpoints),
		slog.Int("scans", result.Scans),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors))
	return result, nil
}

func (s *Scanner) fetchHeaders(ctx context.Context, t target) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint.Location(t.url.URL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "failmap-scanner")

	resp, err := s.clientForIP(t.endpoint.IPVersion).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.Header, nil
}
