package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

// testConfig trips after three consecutive failures and recovers quickly so
// state transitions are observable without long sleeps.
func testConfig() *Config {
	return &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func fail(ctx context.Context) (interface{}, error) { return nil, errUpstream }
func ok(ctx context.Context) (interface{}, error)   { return "ok", nil }

func TestBreaker_TripsOpenAndFailsFast(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		_, err := cb.ExecuteContext(context.Background(), fail)
		assert.ErrorIs(t, err, errUpstream)
	}
	require.Equal(t, StateOpen, cb.State())

	// Open circuit rejects without calling the request function.
	called := false
	_, err := cb.ExecuteContext(context.Background(), func(ctx context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.ExecuteContext(context.Background(), fail)
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// MaxRequests consecutive successes close the circuit again.
	_, err := cb.ExecuteContext(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.ExecuteContext(context.Background(), fail)
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	cb.ExecuteContext(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_CountsTrackOutcomes(t *testing.T) {
	cb := New(testConfig())

	cb.ExecuteContext(context.Background(), ok)
	cb.ExecuteContext(context.Background(), ok)
	cb.ExecuteContext(context.Background(), fail)

	counts := cb.Counts()
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

func TestCounts_FailureRatio(t *testing.T) {
	assert.InDelta(t, 0.4, Counts{Requests: 10, TotalFailures: 4}.FailureRatio(), 1e-9)
	assert.Zero(t, Counts{}.FailureRatio())
}

func TestDefaultConfig_TripCondition(t *testing.T) {
	cfg := DefaultConfig("openrouter")

	assert.False(t, cfg.ReadyToTrip(Counts{Requests: 4, TotalFailures: 4}), "needs at least 5 requests")
	assert.False(t, cfg.ReadyToTrip(Counts{Requests: 10, TotalFailures: 5}), "50% exactly does not trip")
	assert.True(t, cfg.ReadyToTrip(Counts{Requests: 10, TotalFailures: 6}))
}
