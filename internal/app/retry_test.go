package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/domain"
)

func TestIsTransient(t *testing.T) {
	require.True(t, app.IsTransient(statusError(429)))
	require.True(t, app.IsTransient(fmt.Errorf("send: %w", statusError(502))))
	require.True(t, app.IsTransient(fmt.Errorf("send: %w", domain.ErrTransientDelivery)))
	require.False(t, app.IsTransient(statusError(500)))
	require.False(t, app.IsTransient(errors.New("boom")))
	require.False(t, app.IsTransient(nil))
}

func TestRetryPolicyReportsRetries(t *testing.T) {
	var waits []time.Duration
	attempts, err := fastRetry().Do(context.Background(), func(context.Context) error {
		return statusError(429)
	}, func(attempt int, _ error, wait time.Duration) {
		waits = append(waits, wait)
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.Len(t, waits, 2)
}

func TestRetryPolicyZeroBudget(t *testing.T) {
	policy := fastRetry()
	policy.MaxRetries = 0
	attempts, err := policy.Do(context.Background(), func(context.Context) error {
		return statusError(502)
	}, nil)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyReturnsUnwrappedPermanentError(t *testing.T) {
	cause := errors.New("forbidden")
	_, err := fastRetry().Do(context.Background(), func(context.Context) error { return cause }, nil)
	require.ErrorIs(t, err, cause)
}
