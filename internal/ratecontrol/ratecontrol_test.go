package ratecontrol

import (
	"context"
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucket_Disabled(t *testing.T) {
	b := NewTokenBucket(0)
	require.False(t, b.Enabled())
	require.NoError(t, b.Acquire(context.Background()))
}

func TestTokenBucket_BurstSizing(t *testing.T) {
	b := NewTokenBucket(50)
	require.True(t, b.Enabled())
	// burst floor is 100 even for a low pps target.
	require.Equal(t, 100, b.limiter.Burst())
	require.NoError(t, b.Acquire(context.Background()))
}

func TestTokenBucket_MaxRateNeverDeadlocks(t *testing.T) {
	// A very large pps cap must still construct and admit immediately,
	// per spec §8's max_rate_pps = u32::MAX boundary case.
	b := NewTokenBucket(math.MaxUint32)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Acquire(ctx))
}

func TestNewEnabledTokenBucket_RejectsZero(t *testing.T) {
	_, err := NewEnabledTokenBucket(0)
	require.Error(t, err)
}

func TestTokenBucket_CancelledContext(t *testing.T) {
	b := NewTokenBucket(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Drain the initial burst synchronously isn't guaranteed, but a
	// cancelled context must never block indefinitely.
	_ = b.Acquire(ctx)
}

func TestBatchThrottler_IncreasesWhenUnderTarget(t *testing.T) {
	th := NewBatchThrottler(1000, 100)
	now := time.Now()
	th.RecordDispatch(now, 50) // observed well below target -> batch grows
	require.Greater(t, th.NextBatch(), 100)
}

func TestBatchThrottler_DecreasesWhenOverTarget(t *testing.T) {
	th := NewBatchThrottler(1000, 1000)
	now := time.Now()
	th.RecordDispatch(now, 4000) // observed well above target -> batch shrinks
	require.Less(t, th.NextBatch(), 1000)
}

func TestBatchThrottler_ClampedRange(t *testing.T) {
	th := NewBatchThrottler(1_000_000, 10_000)
	now := time.Now()
	th.RecordDispatch(now, 1)
	require.LessOrEqual(t, th.NextBatch(), maxBatch)

	th2 := NewBatchThrottler(1, 1)
	th2.RecordDispatch(now, 1_000_000)
	require.GreaterOrEqual(t, th2.NextBatch(), minBatch)
}

func TestBatchThrottler_ResetsOnGap(t *testing.T) {
	th := NewBatchThrottler(1000, 100)
	now := time.Now()
	th.RecordDispatch(now, 100)
	require.Equal(t, 1, th.count)

	th.RecordDispatch(now.Add(2*time.Second), 100)
	// history reset then immediately appended to -> exactly one entry.
	require.Equal(t, 1, th.count)
}

func TestBatchThrottler_ObservedMean(t *testing.T) {
	th := NewBatchThrottler(1000, 100)
	now := time.Now()
	th.RecordDispatch(now, 100)
	th.RecordDispatch(now.Add(10*time.Millisecond), 200)
	require.InDelta(t, 150, th.Observed(), 0.001)
}

func TestConcurrencyGate_BoundsActive(t *testing.T) {
	g := NewConcurrencyGate(2, 0, time.Minute, nil)
	ctx := context.Background()

	p1, err := g.Acquire(ctx)
	require.NoError(t, err)
	p2, err := g.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, g.Active())

	acquired := make(chan struct{})
	go func() {
		p3, err := g.Acquire(ctx)
		require.NoError(t, err)
		close(acquired)
		p3.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should not have succeeded before a release")
	case <-time.After(50 * time.Millisecond):
	}

	p1.Release()
	<-acquired
	p2.Release()
}

func TestConcurrencyGate_ReleaseIsIdempotent(t *testing.T) {
	g := NewConcurrencyGate(1, 0, time.Minute, nil)
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()
	p.Release()
	require.Equal(t, 0, g.Active())
}

func TestConcurrencyGate_CancelledAcquire(t *testing.T) {
	g := NewConcurrencyGate(1, 0, time.Minute, nil)
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx)
	require.Error(t, err)
}

func TestConcurrencyGate_WarnsWhenBelowMin(t *testing.T) {
	var warned time.Duration
	g := NewConcurrencyGate(4, 2, 10*time.Millisecond, func(d time.Duration) {
		warned = d
	})
	p, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release()

	time.Sleep(20 * time.Millisecond)
	g.CheckStale()
	require.Greater(t, warned, time.Duration(0))
}

func TestICMPBackoff_TripEscalatesThenCaps(t *testing.T) {
	b := NewICMPBackoff()
	target := netip.MustParseAddr("192.0.2.1")

	require.Equal(t, time.Duration(0), b.Wait(target))

	var last int
	for i := 0; i < 10; i++ {
		last = b.Trip(target)
	}
	require.Equal(t, 4, last)
	require.Equal(t, 16*time.Second, b.Wait(target))
}

func TestICMPBackoff_ResetClearsState(t *testing.T) {
	b := NewICMPBackoff()
	target := netip.MustParseAddr("192.0.2.2")
	b.Trip(target)
	require.Equal(t, 1, b.Level(target))
	b.Reset(target)
	require.Equal(t, 0, b.Level(target))
	require.Equal(t, time.Duration(0), b.Wait(target))
}

func TestICMPBackoff_PerTargetIsolation(t *testing.T) {
	b := NewICMPBackoff()
	a := netip.MustParseAddr("192.0.2.3")
	c := netip.MustParseAddr("192.0.2.4")
	b.Trip(a)
	b.Trip(a)
	require.Equal(t, 2, b.Level(a))
	require.Equal(t, 0, b.Level(c))
}
