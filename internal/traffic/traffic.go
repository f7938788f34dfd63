// Package traffic keeps sliding windows of report request outcomes. Health
// checks read it to decide whether the dashboard is overloaded or degraded.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back any window can look.
const retention = 30 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a served report, chart or export.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordFailure records a request that failed with a server-side error.
// Empty date ranges are not failures.
func RecordFailure() { defaultTracker.RecordFailure() }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.RecordDenied() }

// RequestCount returns the number of outcomes of any kind within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// FailureRate returns (failures, successes+failures) within the window.
func FailureRate(window time.Duration) (failures, total int) {
	return defaultTracker.FailureRate(window)
}

// Reset clears all recorded outcomes. Used by tests and the /test reset action.
func Reset() { defaultTracker.Reset() }

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu        sync.Mutex
	successes []time.Time
	failures  []time.Time
	denials   []time.Time
	now       func() time.Time
}

func (t *Tracker) RecordSuccess() { t.record(&t.successes) }
func (t *Tracker) RecordFailure() { t.record(&t.failures) }
func (t *Tracker) RecordDenied()  { t.record(&t.denials) }

func (t *Tracker) record(times *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*times = append(*times, now)
	t.pruneLocked(now)
}

// RequestCount returns successes, failures and denials within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	return countSince(t.successes, cutoff) + countSince(t.failures, cutoff) + countSince(t.denials, cutoff)
}

// DenialCount returns denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denials, t.clock().Add(-window))
}

// FailureRate returns failures and the total of successes and failures
// within the window. Denials are excluded.
func (t *Tracker) FailureRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	failures = countSince(t.failures, cutoff)
	return failures, failures + countSince(t.successes, cutoff)
}

// Reset clears all outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.failures, t.denials = nil, nil, nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must hold t.mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, times := range []*[]time.Time{&t.successes, &t.failures, &t.denials} {
		i := 0
		for ; i < len(*times) && (*times)[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*times = append((*times)[:0], (*times)[i:]...)
		}
	}
}
