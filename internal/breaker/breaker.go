// Package breaker implements a circuit breaker with a sliding-window error
// rate detector. The transport uses it to short-circuit requests while the
// gateway is degraded instead of queueing up timeouts.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers that consult the breaker while it is
// rejecting requests.
var ErrOpen = errors.New("breaker: circuit open")

// State represents the breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns a human-readable state name.
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

// Config holds breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip (e.g. 0.30)
	MinSamples     int           // minimum requests before the breaker can open
	Window         time.Duration // sliding window length, capped at 60s
	OpenTimeout    time.Duration // time in open before allowing a probe
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.30,
		MinSamples:     10,
		Window:         time.Minute,
		OpenTimeout:    30 * time.Second,
	}
}

// bucket holds error and request counts for a 1-second slot.
type bucket struct {
	errors float64
	total  int
}

// window is a fixed-size ring of 1-second buckets.
type window struct {
	buckets  [60]bucket
	size     int
	head     int
	headTime int64 // unix seconds of head bucket
}

func newWindow(d time.Duration) window {
	size := int(d / time.Second)
	if size <= 0 || size > 60 {
		size = 60
	}
	return window{size: size}
}

// advance moves the head forward to the current second, clearing stale
// buckets.
func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	clearN := min(int(gap), w.size)
	for i := range clearN {
		w.buckets[(w.head+1+i)%w.size] = bucket{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

func (w *window) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	var total int
	for i := range w.size {
		errs += w.buckets[i].errors
		total += w.buckets[i].total
	}
	if total == 0 {
		return 0, 0
	}
	return errs / float64(total), total
}

func (w *window) reset() {
	for i := range w.size {
		w.buckets[i] = bucket{}
	}
	w.head = 0
	w.headTime = 0
}

// Breaker is the circuit breaker state machine.
type Breaker struct {
	mu          sync.Mutex
	state       State
	win         window
	openedAt    time.Time
	probedAt    time.Time
	probing     bool
	threshold   float64
	minSamples  int
	openTimeout time.Duration
}

// New creates a breaker with the given config.
func New(cfg Config) *Breaker {
	return &Breaker{
		state:       StateClosed,
		win:         newWindow(cfg.Window),
		threshold:   cfg.ErrorThreshold,
		minSamples:  cfg.MinSamples,
		openTimeout: cfg.OpenTimeout,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. In the open state it starts
// allowing a single probe once OpenTimeout has elapsed. A probe whose
// outcome is never reported re-arms after another OpenTimeout, so a lost
// probe cannot wedge the breaker.
func (b *Breaker) Allow() bool {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.openTimeout {
			b.state = StateHalfOpen
			b.probing = true
			b.probedAt = now
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing || now.Sub(b.probedAt) >= b.openTimeout {
			b.probing = true
			b.probedAt = now
			return true
		}
		return false
	}
	return false
}

// Record reports a request outcome. Weight 0 is a success; larger weights
// count against the error rate (see transport's classifier).
func (b *Breaker) Record(weight float64) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.win.record(weight, now)

	if weight == 0 {
		if b.state == StateHalfOpen {
			// Probe succeeded: close.
			b.state = StateClosed
			b.probing = false
			b.win.reset()
		}
		return
	}

	switch b.state {
	case StateClosed:
		rate, samples := b.win.errorRate(now)
		if samples >= b.minSamples && rate >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		// Probe failed: reopen.
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	}
}
