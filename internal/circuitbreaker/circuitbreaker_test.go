package circuitbreaker

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreaker_StartsClosedAndStaysClosedBelowThreshold(t *testing.T) {
	b := New(Policy{FailureThreshold: 3, Cooldown: time.Minute})
	target := netip.MustParseAddr("10.0.0.1")

	b.Failure(target)
	b.Failure(target)

	allowed, trial := b.Allow(target)
	require.True(t, allowed)
	require.False(t, trial)
	require.Equal(t, StateClosed, b.State(target))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Policy{FailureThreshold: 3, Cooldown: time.Minute})
	target := netip.MustParseAddr("10.0.0.2")

	b.Failure(target)
	b.Failure(target)
	b.Failure(target)

	require.Equal(t, StateOpen, b.State(target))
	allowed, _ := b.Allow(target)
	require.False(t, allowed)
}

func TestBreaker_HalfOpenTrialAfterCooldown(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})
	target := netip.MustParseAddr("10.0.0.3")

	b.Failure(target)
	require.Equal(t, StateOpen, b.State(target))

	start := time.Now()
	b.now = func() time.Time { return start }
	allowed, trial := b.Allow(target)
	require.False(t, allowed)
	require.False(t, trial)

	b.now = func() time.Time { return start.Add(20 * time.Millisecond) }
	allowed, trial = b.Allow(target)
	require.True(t, allowed)
	require.True(t, trial)
	require.Equal(t, StateHalfOpen, b.State(target))
}

func TestBreaker_HalfOpenSuccessClosesBreaker(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: time.Nanosecond})
	target := netip.MustParseAddr("10.0.0.4")

	b.Failure(target)
	time.Sleep(time.Millisecond)
	allowed, trial := b.Allow(target)
	require.True(t, allowed)
	require.True(t, trial)

	b.Success(target)
	require.Equal(t, StateClosed, b.State(target))
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: time.Nanosecond})
	target := netip.MustParseAddr("10.0.0.5")

	b.Failure(target)
	time.Sleep(time.Millisecond)
	allowed, trial := b.Allow(target)
	require.True(t, allowed)
	require.True(t, trial)

	b.Failure(target)
	require.Equal(t, StateOpen, b.State(target))
}

func TestBreaker_OnlyOneHalfOpenTrialInFlight(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: time.Nanosecond})
	target := netip.MustParseAddr("10.0.0.6")

	b.Failure(target)
	time.Sleep(time.Millisecond)

	allowed1, trial1 := b.Allow(target)
	allowed2, trial2 := b.Allow(target)

	require.True(t, allowed1)
	require.True(t, trial1)
	require.False(t, allowed2)
	require.False(t, trial2)
}

func TestBreaker_PerTargetIsolation(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: time.Minute})
	a := netip.MustParseAddr("10.0.0.7")
	other := netip.MustParseAddr("10.0.0.8")

	b.Failure(a)
	require.Equal(t, StateOpen, b.State(a))
	require.Equal(t, StateClosed, b.State(other))
}

func TestBreaker_ResetReturnsToClosed(t *testing.T) {
	b := New(Policy{FailureThreshold: 1, Cooldown: time.Minute})
	target := netip.MustParseAddr("10.0.0.9")

	b.Failure(target)
	require.Equal(t, StateOpen, b.State(target))

	b.Reset(target)
	require.Equal(t, StateClosed, b.State(target))
	allowed, _ := b.Allow(target)
	require.True(t, allowed)
}
