// Package circuitbreaker implements the per-target Closed/Open/HalfOpen
// state machine of spec §7: a target with repeated hard failures is
// paused rather than retried into the ground, while the scan as a whole
// continues.
package circuitbreaker

import (
	"net/netip"
	"sync"
	"time"
)

// State is a circuit breaker's current disposition toward a target.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Policy configures transition thresholds. FailureThreshold consecutive
// hard failures trip Closed -> Open; Cooldown is how long Open is held
// before allowing a single HalfOpen trial; a HalfOpen trial's outcome
// decides Closed (success) or Open again (failure) — the spec specifies
// exactly one trial, not a counted threshold.
type Policy struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultPolicy trips after 5 consecutive hard failures and cools down
// for 30s before allowing a half-open trial.
var DefaultPolicy = Policy{FailureThreshold: 5, Cooldown: 30 * time.Second}

type entry struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    bool
}

// Breaker tracks per-target circuit state for the lifetime of a scan.
type Breaker struct {
	policy Policy
	mu     sync.RWMutex
	byAddr map[netip.Addr]*entry
	now    func() time.Time
}

// New constructs a Breaker under policy. A zero Policy uses DefaultPolicy.
func New(policy Policy) *Breaker {
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = DefaultPolicy.FailureThreshold
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = DefaultPolicy.Cooldown
	}
	return &Breaker{policy: policy, byAddr: make(map[netip.Addr]*entry), now: time.Now}
}

func (b *Breaker) entryFor(target netip.Addr) *entry {
	b.mu.RLock()
	e, ok := b.byAddr[target]
	b.mu.RUnlock()
	if ok {
		return e
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.byAddr[target]; ok {
		return e
	}
	e = &entry{}
	b.byAddr[target] = e
	return e
}

// Allow reports whether work for target should proceed now, and if so,
// whether this admission is the single HalfOpen trial (the caller MUST
// report its outcome via Success/Failure so the breaker can transition).
func (b *Breaker) Allow(target netip.Addr) (allowed bool, isHalfOpenTrial bool) {
	e := b.entryFor(target)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if b.now().Sub(e.openedAt) < b.policy.Cooldown {
			return false, false
		}
		if e.halfOpenInFlight {
			return false, false
		}
		e.state = StateHalfOpen
		e.halfOpenInFlight = true
		return true, true
	case StateHalfOpen:
		return false, false
	default:
		return true, false
	}
}

// Success records a successful probe outcome for target.
func (b *Breaker) Success(target netip.Addr) {
	e := b.entryFor(target)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures = 0
	e.halfOpenInFlight = false
	e.state = StateClosed
}

// Failure records a hard-failure probe outcome for target, tripping the
// breaker open if the failure threshold is reached (from Closed) or
// immediately (from a failed HalfOpen trial).
func (b *Breaker) Failure(target netip.Addr) {
	e := b.entryFor(target)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateHalfOpen {
		e.halfOpenInFlight = false
		e.state = StateOpen
		e.openedAt = b.now()
		e.consecutiveFailures = 0
		return
	}

	e.consecutiveFailures++
	if e.consecutiveFailures >= b.policy.FailureThreshold {
		e.state = StateOpen
		e.openedAt = b.now()
	}
}

// State returns target's current state.
func (b *Breaker) State(target netip.Addr) State {
	e := b.entryFor(target)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset clears all tracked state for target, returning it to Closed.
func (b *Breaker) Reset(target netip.Addr) {
	e := b.entryFor(target)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateClosed
	e.consecutiveFailures = 0
	e.halfOpenInFlight = false
}
