package player

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glizzus/dank-ditties/internal/config"
)

// RetryPolicy decides how often and how fast a failed playback attempt is
// retried with a fresh selection. MaxAttempts of zero retries forever;
// a Delay of zero retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
}

// Unbounded retries immediately and never gives up.
var Unbounded = RetryPolicy{}

func RetryPolicyFromConfig(cfg config.PlayerConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Delay:       cfg.RetryDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Delay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Delay
		exp.MaxInterval = max(p.MaxDelay, p.Delay)
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
