package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Open connects to the broker described by rawURL:
//
//	redis://[:password@]host:port/db   Redis reliable list queue
//	rediss://...                      Redis over TLS
//	memory://[?size=n]                process-local channels
//
// Redis brokers are pinged before they are returned.
func Open(ctx context.Context, rawURL string, logger *slog.Logger) (Broker, error) {
	scheme, _, _ := strings.Cut(rawURL, "://")
	switch strings.ToLower(scheme) {
	case "redis", "rediss":
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
		}
		b := NewRedisBroker(redis.NewClient(opts), "", logger)
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to reach broker at %s: %w", opts.Addr, err)
		}
		return b, nil
	case "memory":
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
		}
		size := 0
		if v := u.Query().Get("size"); v != "" {
			if size, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("%w: invalid size %q", ErrUnsupportedURL, v)
			}
		}
		return NewMemoryBroker(size, logger), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	}
}
