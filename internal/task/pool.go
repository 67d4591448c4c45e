package task

import (
	"fmt"
	"runtime"
)

// Worker pool models accepted by the celery worker command.
const (
	PoolEventlet = "eventlet"
	PoolGevent   = "gevent"
	PoolPrefork  = "prefork"
	PoolThreads  = "threads"
	PoolSolo     = "solo"
)

// DefaultGreenConcurrency is the consumer count for the eventlet and gevent
// pools, which run many cheap cooperative workers.
const DefaultGreenConcurrency = 100

// Concurrency resolves the number of concurrent consumers for a pool model.
// A positive override wins over the pool default.
func Concurrency(pool string, override int) (int, error) {
	if override < 0 {
		return 0, fmt.Errorf("concurrency must not be negative, got %d", override)
	}

	var n int
	switch pool {
	case PoolEventlet, PoolGevent:
		n = DefaultGreenConcurrency
	case PoolPrefork, PoolThreads:
		n = runtime.NumCPU()
	case PoolSolo:
		n = 1
	default:
		return 0, fmt.Errorf("unknown pool %q", pool)
	}

	if override > 0 {
		n = override
	}
	return n, nil
}
