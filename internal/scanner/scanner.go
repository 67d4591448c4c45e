// Package scanner implements the task handlers run by workers: endpoint
// scans and the rating rebuilds that turn scan results into map colours.
package scanner

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/domain/rating"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/uptrace/bun"
)

// Task types handled by the scanner.
const (
	TypeScanSecurityHeaders = "scan_security_headers"
	TypeScanPlainHTTP       = "scan_plain_http"
	TypeScanDummy           = "scan_dummy"
	TypeRebuildRatings      = "rebuild_ratings"
	TypeDefaultRatings      = "default_ratings"
)

const (
	defaultTimeout = 10 * time.Second
	maxRedirects   = 5
)

// Scanner holds the dependencies shared by all scan handlers.
type Scanner struct {
	db          *bun.DB
	stores      store.Stores
	calculator  *rating.Calculator
	logger      *slog.Logger
	timeout     time.Duration
	ipv6        bool
	now         func() time.Time
	clientForIP func(ipVersion int) *http.Client
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithClock replaces the time source used to stamp scans and ratings.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithHTTPClient makes every endpoint request use c regardless of ip version.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scanner) {
		s.clientForIP = func(int) *http.Client { return c }
	}
}

// New creates a Scanner. db may be nil, in which case ratings are written
// without a surrounding transaction.
func New(db *bun.DB, stores store.Stores, cfg config.ScannerConfig, logger *slog.Logger, opts ...Option) *Scanner {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Scanner{
		db:         db,
		stores:     stores,
		calculator: rating.NewCalculator(nil),
		logger:     logger.With("component", "scanner"),
		timeout:    timeout,
		ipv6:       cfg.NetworkSupportsIPv6,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.clientForIP = s.newClient
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds every scanner handler to reg.
func (s *Scanner) Register(reg *task.Registry) error {
	handlers := map[string]task.Handler{
		TypeScanSecurityHeaders: handle(s.ScanSecurityHeaders),
		TypeScanPlainHTTP:       handle(s.ScanPlainHTTP),
		TypeScanDummy:           handle(s.ScanDummy),
		TypeRebuildRatings:      handle(s.RebuildRatings),
		TypeDefaultRatings:      handle(s.DefaultRatings),
	}
	for _, t := range Types() {
		if err := reg.Register(t, handlers[t]); err != nil {
			return err
		}
	}
	return nil
}

// Types lists the task types Register adds, in display order.
func Types() []string {
	return []string{
		TypeScanSecurityHeaders,
		TypeScanPlainHTTP,
		TypeScanDummy,
		TypeRebuildRatings,
		TypeDefaultRatings,
	}
}

// newClient builds an HTTP client that only dials the endpoint's ip version.
func (s *Scanner) newClient(ipVersion int) *http.Client {
	network := "tcp4"
	if ipVersion == 6 {
		network = "tcp6"
	}
	dialer := &net.Dialer{Timeout: s.timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		// Certificate problems are rated by other scans; headers are read regardless.
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		TLSHandshakeTimeout:   s.timeout,
		ResponseHeaderTimeout: s.timeout,
		DisableKeepAlives:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   s.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// inTx runs fn with stores bound to a transaction when a database is set.
func (s *Scanner) inTx(ctx context.Context, fn func(ctx context.Context, stores store.Stores) error) error {
	if s.db == nil {
		return fn(ctx, s.stores)
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.stores.WithTx(tx))
	})
}

// handle adapts a scan function to a task.Handler decoding a Filter payload.
func handle[R any](fn func(ctx context.Context, f Filter) (R, error)) task.Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		f, err := DecodeFilter(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		result, err := fn(ctx, f)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
