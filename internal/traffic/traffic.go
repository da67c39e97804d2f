// Package traffic keeps sliding windows of request outcomes on the
// rate-limited paths (/api, /charts) for the health check: overload uses all
// outcomes including denials, degraded uses the error rate.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies one request.
type Outcome int

const (
	Success Outcome = iota
	Error
	Denied
	numOutcomes
)

// retention bounds memory; windows longer than this undercount.
const retention = 10 * time.Minute

var defaultTracker = NewTracker(time.Now)

// Record records an outcome on the process-wide tracker.
func Record(o Outcome) { defaultTracker.Record(o) }

// RecordSuccess records a request served without a server error.
func RecordSuccess() { defaultTracker.Record(Success) }

// RecordError records a request that ended in a server error.
func RecordError() { defaultTracker.Record(Error) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(Denied) }

// RequestCount returns successes, errors and denials within window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns denials within window.
func DenialCount(window time.Duration) int { return defaultTracker.Count(Denied, window) }

// ErrorRate returns (errors, successes+errors) within window.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the process-wide tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker records outcome timestamps per Outcome, oldest first.
type Tracker struct {
	mu    sync.Mutex
	now   func() time.Time
	times [numOutcomes][]time.Time
}

// NewTracker returns a Tracker reading time from now.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

// Record appends an outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	if o < 0 || o >= numOutcomes {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Count returns outcomes of kind o within window ending now.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], t.now().Add(-window))
}

// RequestCount returns all outcomes within window ending now.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for o := range t.times {
		n += countSince(t.times[o], cutoff)
	}
	return n
}

// ErrorRate returns (errors, successes+errors) within window; denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = countSince(t.times[Error], cutoff)
	return errors, errors + countSince(t.times[Success], cutoff)
}

// Reset clears all outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for o := range t.times {
		t.times[o] = nil
	}
}

// countSince counts timestamps not before cutoff. times is sorted ascending.
func countSince(times []time.Time, cutoff time.Time) int {
	i := len(times)
	for i > 0 && !times[i-1].Before(cutoff) {
		i--
	}
	return len(times) - i
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for o := range t.times {
		ts := t.times[o]
		i := 0
		for i < len(ts) && ts[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			t.times[o] = append(ts[:0], ts[i:]...)
		}
	}
}
