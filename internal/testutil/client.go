package testutil

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/sender"
)

func newClient(t *testing.T, baseURL string, base, opts []sender.Option) *sender.Client {
	t.Helper()
	base = append([]sender.Option{sender.WithBaseURL(baseURL)}, base...)
	client, err := sender.New(TestToken, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// NewTestClient returns a sender pointed at baseURL with retries disabled.
func NewTestClient(t *testing.T, baseURL string, opts ...sender.Option) *sender.Client {
	return newClient(t, baseURL, []sender.Option{sender.WithRetries(0)}, opts)
}

// NewRetryTestClient returns a sender whose breaker never opens, so retry
// behaviour is observed on its own. A non-nil sleeper replaces real waits.
func NewRetryTestClient(t *testing.T, baseURL string, sleeper *FakeSleeper, opts ...sender.Option) *sender.Client {
	base := []sender.Option{sender.WithCircuitBreakerSettings(sender.CircuitBreakerSettings{
		MaxRequests: 100,
		Timeout:     time.Hour,
		ReadyToTrip: func(gobreaker.Counts) bool { return false },
	})}
	if sleeper != nil {
		base = append(base, sender.WithSleeper(sleeper))
	}
	return newClient(t, baseURL, base, opts)
}

// NewBreakerTestClient returns a sender without retries whose breaker opens
// after two consecutive failures and stays open for two seconds.
func NewBreakerTestClient(t *testing.T, baseURL string, opts ...sender.Option) *sender.Client {
	return newClient(t, baseURL, []sender.Option{
		sender.WithRetries(0),
		sender.WithCircuitBreakerSettings(sender.CircuitBreakerSettings{
			MaxRequests: 1,
			Timeout:     2 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
		}),
	}, opts)
}
