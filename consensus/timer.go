package consensus

import (
	"sync"
	"time"
)

// DefaultBackoffFactor is the multiplicative growth applied to the
// view-change timeout each time it fires without an intervening block, per
// spec: "Timeout grows exponentially (multiplicative backoff capped at a
// configurable maximum) until any block from the current view is
// observed." Configurable per Config.ViewChangeBackoff.
const DefaultBackoffFactor = 1.5

// ViewTimer fires fn after an exponentially-backed-off timeout whenever
// the view it was armed for is still current. Callers reset it on every
// view advance and on every block observed from the current view.
type ViewTimer struct {
	mu sync.Mutex

	initial time.Duration
	max     time.Duration
	current time.Duration
	backoff float64

	armedView uint64
	timer     *time.Timer
	fn        func(view uint64)
}

// NewViewTimer returns a timer that starts at initial and backs off
// multiplicatively (by backoff, or DefaultBackoffFactor if backoff <= 1.0)
// up to max.
func NewViewTimer(initial, max time.Duration, backoff float64, fn func(view uint64)) *ViewTimer {
	if backoff <= 1.0 {
		backoff = DefaultBackoffFactor
	}
	return &ViewTimer{
		initial: initial,
		max:     max,
		current: initial,
		backoff: backoff,
		fn:      fn,
	}
}

// Arm (re)starts the timer for view, replacing any previously scheduled
// fire. The callback only runs if view is still the armed view when the
// timer fires — this makes view advances racing with timer expiry safe
// without needing timer.Stop() to be reliable (Go's Timer.Stop does not
// guarantee the callback hasn't already started).
func (t *ViewTimer) Arm(view uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.armedView = view
	d := t.current
	t.timer = time.AfterFunc(d, func() {
		t.fire(view)
	})
}

func (t *ViewTimer) fire(view uint64) {
	t.mu.Lock()
	stillCurrent := t.armedView == view
	if stillCurrent {
		t.current = time.Duration(float64(t.current) * t.backoff)
		if t.current > t.max {
			t.current = t.max
		}
	}
	t.mu.Unlock()

	if stillCurrent {
		t.fn(view)
	}
}

// ResetBackoff restores the timeout to its initial value, called once a
// block from the current view is observed.
func (t *ViewTimer) ResetBackoff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = t.initial
}

// Stop cancels any pending fire and prevents future callbacks.
func (t *ViewTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armedView = 0
}

// CurrentTimeout reports the timeout that will apply the next time Arm
// is called, for observability.
func (t *ViewTimer) CurrentTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
