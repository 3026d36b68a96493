// retry.go retries history writes that hit transient SQLite errors.
//
// Two runs recording into the same database, or a `np runs` reading while a
// run commits, can see SQLITE_BUSY, SQLITE_LOCKED or IOERR_SHORT_READ even
// with busy_timeout set. Those are retried with exponential backoff and
// jitter; anything else is returned at once.
//
// The protocol itself never retries. Only the history store does, and only
// after a run has finished.
package store

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// transientMarkers are substrings modernc.org/sqlite puts in errors that
// clear up on their own.
var transientMarkers = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
	"(5)",   // SQLITE_BUSY
	"(6)",   // SQLITE_LOCKED
	"(522)", // SQLITE_IOERR_SHORT_READ
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// retryOp calls fn until it succeeds, fails permanently, runs out of
// retries, or ctx is done.
func retryOp(ctx context.Context, cfg retryConfig, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || !isTransient(err) || attempt >= cfg.maxRetries {
			return err
		}
		t := time.NewTimer(backoffDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return err
		}
	}
}

// backoffDelay is baseDelay*2^attempt capped at maxDelay, plus up to
// baseDelay of jitter.
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	d := cfg.baseDelay << uint(attempt)
	if d > cfg.maxDelay || d <= 0 {
		d = cfg.maxDelay
	}
	if cfg.baseDelay > 0 {
		d += time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	}
	return d
}
