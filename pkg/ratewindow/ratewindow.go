package ratewindow

// Package ratewindow provides a fixed-retention sliding-window event counter.
// It records "a request happened" timestamps and answers how many events fell
// into a trailing window, with memory bounded by the retention duration.

import (
	"sync"
	"time"
)

// DefaultRetention bounds how long event timestamps are kept.
const DefaultRetention = 900 * time.Second

// Window is a monitor-style sliding-window counter. Entries are appended at
// the tail in non-decreasing timestamp order and evicted only from the head
// once older than the retention, which keeps both operations cheap. Safe for
// concurrent use by multiple pipeline runs sharing one adapter.
type Window struct {
	mu        sync.Mutex
	events    []time.Time
	total     int64
	retention time.Duration
	now       func() time.Time
}

// New creates a window with the given retention. Non-positive retention
// falls back to DefaultRetention.
func New(retention time.Duration) *Window {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Window{
		retention: retention,
		now:       time.Now,
	}
}

// Increment records n events stamped "now" and evicts expired entries.
func (w *Window) Increment(n int) {
	w.record(n, false)
}

// Append records n events stamped "now" without running eviction. Useful
// when a burst of increments is followed by a single Count, which evicts
// anyway.
func (w *Window) Append(n int) {
	w.record(n, true)
}

func (w *Window) record(n int, skipEvict bool) {
	if n <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ts := w.now()
	w.total += int64(n)
	for i := 0; i < n; i++ {
		w.events = append(w.events, ts)
	}
	if !skipEvict {
		w.evictLocked()
	}
}

// Evict drops entries older than the retention duration.
func (w *Window) Evict() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()
}

// evictLocked removes expired entries from the head while the oldest entry
// is past the retention cutoff. Entries are time-ordered, so stopping at the
// first fresh entry is correct.
func (w *Window) evictLocked() {
	cutoff := w.now().Add(-w.retention)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// Count parses a duration spec (e.g. "5m", "5min 30sec") and returns the
// number of events recorded within that trailing window.
func (w *Window) Count(spec string) (int, error) {
	d, err := ParseDurationSpec(spec)
	if err != nil {
		return 0, err
	}
	return w.CountWindow(d), nil
}

// CountWindow returns the number of events within the trailing duration d.
// Eviction runs first, then the scan walks backwards from the tail and stops
// at the first entry outside the cutoff, so the cost is proportional to the
// count returned, never to the total event count.
func (w *Window) CountWindow(d time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evictLocked()

	cutoff := w.now().Add(-d)
	count := 0
	for i := len(w.events) - 1; i >= 0; i-- {
		if !w.events[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}

// Total returns the number of events ever recorded, independent of
// retention and eviction.
func (w *Window) Total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Retention returns the configured retention duration.
func (w *Window) Retention() time.Duration { return w.retention }
