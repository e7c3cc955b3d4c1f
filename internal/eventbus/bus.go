package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSubscriberQueueDepth bounds each subscriber's pending-event
// channel. Publish never blocks on a slow subscriber; once its queue is
// full, further events for it are dropped and counted (spec §4.12:
// "publish is non-blocking and lossless for the bus as a whole; a slow
// subscriber may fall behind and miss events, but those drops are
// reported, never silent").
const DefaultSubscriberQueueDepth = 256

// DefaultHistoryCapacity is the default ring-buffer size for replay.
const DefaultHistoryCapacity = 1000

// Subscription is a live event stream handed back from Subscribe.
type Subscription struct {
	id      uint64
	C       <-chan Event
	dropped *uint64
	bus     *Bus
}

// Dropped returns how many events were dropped for this subscriber
// because its queue was full.
func (s *Subscription) Dropped() uint64 {
	return atomic.LoadUint64(s.dropped)
}

// Unsubscribe detaches the subscription; its channel is closed.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

type subscriber struct {
	id      uint64
	filter  Filter
	queue   chan Event
	dropped uint64
}

// Bus is the scan-wide publish-subscribe event bus of spec §4.12.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	history     *history
	queueDepth  int

	totalDropped uint64
	metrics      *Metrics
}

// New constructs a Bus. queueDepth <= 0 uses DefaultSubscriberQueueDepth;
// historyCapacity <= 0 uses DefaultHistoryCapacity.
func New(queueDepth, historyCapacity int) *Bus {
	if queueDepth <= 0 {
		queueDepth = DefaultSubscriberQueueDepth
	}
	return &Bus{
		subscribers: make(map[uint64]*subscriber),
		history:     newHistory(historyCapacity),
		queueDepth:  queueDepth,
	}
}

// Publish delivers e to every matching subscriber without blocking.
// Events are always recorded to history regardless of whether any
// subscriber currently matches.
func (b *Bus) Publish(e Event) {
	b.history.append(e)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.metrics != nil {
		b.metrics.published.Inc()
	}
	for _, sub := range b.subscribers {
		if !sub.filter(e) {
			continue
		}
		select {
		case sub.queue <- e:
		default:
			atomic.AddUint64(&sub.dropped, 1)
			atomic.AddUint64(&b.totalDropped, 1)
			if b.metrics != nil {
				b.metrics.dropped.Inc()
			}
		}
	}
}

// Subscribe registers a new subscriber matching filter and returns its
// live stream. Pass nil for filter to receive every event (equivalent to
// All()).
func (b *Bus) Subscribe(filter Filter) *Subscription {
	if filter == nil {
		filter = All()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:     b.nextID,
		filter: filter,
		queue:  make(chan Event, b.queueDepth),
	}
	b.subscribers[sub.id] = sub
	if b.metrics != nil {
		b.metrics.subscribers.Inc()
	}

	return &Subscription{id: sub.id, C: sub.queue, dropped: &sub.dropped, bus: b}
}

// SubscribeWithHistory is Subscribe plus a snapshot of buffered history
// matching filter, for a consumer attaching after the scan has started.
func (b *Bus) SubscribeWithHistory(filter Filter) (*Subscription, []Event) {
	sub := b.Subscribe(filter)
	if filter == nil {
		filter = All()
	}
	var backfill []Event
	for _, e := range b.history.snapshot() {
		if filter(e) {
			backfill = append(backfill, e)
		}
	}
	return sub, backfill
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.queue)
		delete(b.subscribers, id)
		if b.metrics != nil {
			b.metrics.subscribers.Dec()
		}
	}
}

// TotalDropped returns the cumulative count of events dropped across all
// subscribers due to queue overflow.
func (b *Bus) TotalDropped() uint64 {
	return atomic.LoadUint64(&b.totalDropped)
}

// Now exists purely so callers constructing Events don't each import
// "time" just for this one call site pattern.
func Now() time.Time { return time.Now() }
