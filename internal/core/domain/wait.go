package domain

import (
	"context"
	"time"
)

// SleepContext pauses for d or until ctx is done, returning ctx.Err() in
// the latter case. Non-positive durations return immediately.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
