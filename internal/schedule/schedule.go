package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// Every calls fn at each tick of the cron expression until ctx is done.
// It blocks, so callers usually run it in its own goroutine. Ticks that
// arrive while fn is still running are not queued.
func Every(ctx context.Context, cron string, fn func(ctx context.Context)) error {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q never fires again", cron)
		}
		if !wait(ctx, time.Until(next)) {
			return ctx.Err()
		}
		fn(ctx)
	}
}

// wait sleeps for d and reports whether it completed before ctx was done.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
