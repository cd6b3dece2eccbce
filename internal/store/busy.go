package store

import (
	"context"
	"strings"
	"time"
)

const (
	busyRetries    = 3
	busyRetryDelay = 50 * time.Millisecond
)

// isBusyError checks if the error is a SQLite concurrency error, either
// SQLITE_BUSY or "database is locked". These typically warrant retry.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "SQLITE_BUSY") || strings.Contains(text, "database is locked")
}

// withBusyRetry runs fn, retrying when SQLite reports the database busy.
// The DSN busy_timeout absorbs most contention; this covers locks held
// across whole transactions.
func withBusyRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(busyRetryDelay):
		}
	}
	return err
}
