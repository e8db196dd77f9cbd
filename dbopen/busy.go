package dbopen

import (
	"context"
	"strings"
	"time"
)

// IsBusy reports whether err is an SQLite BUSY/locked condition, which
// busy_timeout did not absorb.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Backoff waits before retry number attempt (1-based): 25ms, 50ms, 100ms,
// capped at 400ms. It returns ctx's error if ctx ends first.
func Backoff(ctx context.Context, attempt int) error {
	d := 25 * time.Millisecond << min(max(attempt-1, 0), 4)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
