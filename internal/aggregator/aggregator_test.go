package aggregator

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
)

func result(port uint16, state scancore.PortState) scancore.ScanResult {
	return scancore.ScanResult{
		Target: scancore.Target{Addr: netip.MustParseAddr("10.0.0.1")},
		Port:   port,
		State:  state,
	}
}

func TestAggregator_CommitsAllSubmissions(t *testing.T) {
	var mu sync.Mutex
	var got []scancore.ScanResult
	a := New(16, func(r scancore.ScanResult) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	for i := 0; i < 100; i++ {
		a.Submit(ctx, result(uint16(i), scancore.StateOpen))
	}
	cancel()
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	require.EqualValues(t, 100, a.Committed())
}

func TestAggregator_ConcurrentProducers(t *testing.T) {
	var count int64
	var mu sync.Mutex
	a := New(64, func(r scancore.ScanResult) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				a.Submit(ctx, result(uint16(i), scancore.StateOpen))
			}
		}(w)
	}
	wg.Wait()
	cancel()
	a.Close()

	require.EqualValues(t, 500, a.Committed())
}

func TestAggregator_DetectsConflictingDuplicateKey(t *testing.T) {
	a := New(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	a.Submit(ctx, result(80, scancore.StateOpen))
	a.Submit(ctx, result(80, scancore.StateClosed))
	time.Sleep(10 * time.Millisecond)
	cancel()
	a.Close()

	require.EqualValues(t, 1, a.Conflicts())
}

func TestAggregator_SummaryReflectsStates(t *testing.T) {
	a := New(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	a.Submit(ctx, result(80, scancore.StateOpen))
	a.Submit(ctx, result(81, scancore.StateClosed))
	a.Submit(ctx, result(82, scancore.StateClosed))
	time.Sleep(10 * time.Millisecond)
	cancel()
	a.Close()

	summary := a.Summary()
	require.Equal(t, 1, summary.PortsByState[scancore.StateOpen])
	require.Equal(t, 2, summary.PortsByState[scancore.StateClosed])
}

func TestAggregator_DrainsQueueOnCancel(t *testing.T) {
	var mu sync.Mutex
	var got int
	a := New(4, func(scancore.ScanResult) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 4; i++ {
		a.Submit(ctx, result(uint16(i), scancore.StateOpen))
	}
	go a.Run(ctx)
	cancel()
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 4, got)
}
