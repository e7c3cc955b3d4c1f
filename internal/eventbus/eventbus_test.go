package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToMatchingSubscriber(t *testing.T) {
	bus := New(8, 10)
	sub := bus.Subscribe(ByEventType(TypeHostDiscovered))

	bus.Publish(NewEvent(TypeHostDiscovered, "scan-1", nil, time.Now()))
	bus.Publish(NewEvent(TypePortDiscovered, "scan-1", nil, time.Now()))

	select {
	case e := <-sub.C:
		require.Equal(t, TypeHostDiscovered, e.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected second delivery: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_NeverBlocksOnFullSubscriberQueue(t *testing.T) {
	bus := New(1, 10)
	sub := bus.Subscribe(All())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(NewEvent(TypeMetric, "scan-1", nil, time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber queue")
	}

	require.Greater(t, sub.Dropped(), uint64(0))
	require.Greater(t, bus.TotalDropped(), uint64(0))
}

func TestByScanID_FiltersOtherScans(t *testing.T) {
	bus := New(8, 10)
	sub := bus.Subscribe(ByScanID("scan-a"))

	bus.Publish(NewEvent(TypeStarted, "scan-b", nil, time.Now()))
	bus.Publish(NewEvent(TypeStarted, "scan-a", nil, time.Now()))

	select {
	case e := <-sub.C:
		require.Equal(t, "scan-a", e.ScanID)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestAnd_RequiresAllFiltersToMatch(t *testing.T) {
	f := And(ByScanID("scan-a"), ByEventType(TypeStarted))
	require.True(t, f(NewEvent(TypeStarted, "scan-a", nil, time.Now())))
	require.False(t, f(NewEvent(TypeStarted, "scan-b", nil, time.Now())))
	require.False(t, f(NewEvent(TypeCompleted, "scan-a", nil, time.Now())))
}

func TestSubscribeWithHistory_BackfillsPastEvents(t *testing.T) {
	bus := New(8, 10)
	bus.Publish(NewEvent(TypeStarted, "scan-1", nil, time.Now()))
	bus.Publish(NewEvent(TypeHostDiscovered, "scan-1", nil, time.Now()))

	_, backfill := bus.SubscribeWithHistory(ByScanID("scan-1"))
	require.Len(t, backfill, 2)
	require.Equal(t, TypeStarted, backfill[0].Type)
}

func TestHistory_DropsOldestBeyondCapacity(t *testing.T) {
	h := newHistory(3)
	for i := 0; i < 5; i++ {
		h.append(Event{Type: Type(string(rune('a' + i)))})
	}
	snap := h.snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, Type("c"), snap[0].Type)
	require.Equal(t, Type("e"), snap[2].Type)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	bus := New(8, 10)
	sub := bus.Subscribe(All())
	sub.Unsubscribe()

	_, ok := <-sub.C
	require.False(t, ok)
}

func TestProgressAggregator_ComputesPercentAndThroughput(t *testing.T) {
	bus := New(8, 10)
	pa := NewProgressAggregator(bus)
	defer pa.Close()

	base := time.Now()
	bus.Publish(NewEvent(TypeProgressUpdate, "scan-1", &ProgressPayload{Completed: 10, Total: 100, Stage: "syn"}, base))
	bus.Publish(NewEvent(TypeProgressUpdate, "scan-1", &ProgressPayload{Completed: 60, Total: 100, Stage: "syn"}, base.Add(time.Second)))

	require.Eventually(t, func() bool {
		snap, ok := pa.Snapshot("scan-1")
		return ok && snap.Completed == 60
	}, time.Second, 10*time.Millisecond)

	snap, ok := pa.Snapshot("scan-1")
	require.True(t, ok)
	require.InDelta(t, 60.0, snap.Percent, 0.001)
	require.Equal(t, "syn", snap.Stage)
	require.Greater(t, snap.Throughput, 0.0)
	require.Greater(t, snap.ETA, time.Duration(0))
}

func TestProgressAggregator_UnknownScanReturnsFalse(t *testing.T) {
	bus := New(8, 10)
	pa := NewProgressAggregator(bus)
	defer pa.Close()

	_, ok := pa.Snapshot("nonexistent")
	require.False(t, ok)
}

func TestProgressThrottle_AllowsFirstThenGatesBySmallDelta(t *testing.T) {
	var th ProgressThrottle
	now := time.Now()

	require.True(t, th.Allow(1, 1000, now))
	require.False(t, th.Allow(2, 1000, now.Add(10*time.Millisecond)))
	require.True(t, th.Allow(15, 1000, now.Add(20*time.Millisecond)))
}

func TestProgressThrottle_AllowsAfterOneSecondRegardlessOfPercent(t *testing.T) {
	var th ProgressThrottle
	now := time.Now()

	require.True(t, th.Allow(1, 1000, now))
	require.True(t, th.Allow(2, 1000, now.Add(1100*time.Millisecond)))
}
