package schedule

import (
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// NextRunTimes returns the next n times a cron expression fires, in UTC.
func NextRunTimes(cron string, n int) ([]time.Time, error) {
	return NextRunTimesAfter(cron, time.Now().UTC(), n)
}

// NextRunTimesAfter returns the next n run times strictly after a given time.
// It returns an error if the cron expression is invalid or n is less than 1.
func NextRunTimesAfter(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be greater than 0")
	}
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return expr.NextN(after, uint(n)), nil
}

func ValidateCron(cron string) error {
	if _, err := cronexpr.Parse(cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
