package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// RetryPolicy bounds how often a transient delivery failure is retried.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration
}

// DefaultRetryPolicy mirrors the bot's delivery budget: two retries with a
// jittered delay starting around one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     2 * time.Second,
		MaxElapsed:   10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = p.MaxElapsed
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Millisecond
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, fails permanently or the retry budget is spent.
// onRetry is called before each retry with the attempt that just failed.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
	})
	return attempts, err
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// IsTransient reports whether a delivery error is worth retrying: rate
// limiting, a bad gateway, or anything marked with ErrTransientDelivery.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTransientDelivery) {
		return true
	}
	var coder httpStatusCoder
	if errors.As(err, &coder) {
		switch coder.HTTPStatusCode() {
		case http.StatusTooManyRequests, http.StatusBadGateway:
			return true
		}
	}
	return false
}
