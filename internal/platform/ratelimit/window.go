// Package ratelimit caps how many requests one caller may make per window.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Window is an in-memory sliding window keyed by caller. It is local to the
// process.
type Window struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
}

// NewWindow admits at most limit requests per key within window.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
	}
}

// Allow records a request for key at now if the window has room.
func (w *Window) Allow(key string, now time.Time) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	stamps := prune(w.buckets[key], now.Add(-w.window))
	if len(stamps) >= w.limit {
		w.buckets[key] = stamps
		return Result{Limit: w.limit, ResetAt: stamps[0].Add(w.window)}
	}
	stamps = append(stamps, now)
	w.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     w.limit,
		Remaining: w.limit - len(stamps),
		ResetAt:   stamps[0].Add(w.window),
	}
}

// Sweep drops keys with no requests inside the window.
func (w *Window) Sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.window)
	for key, stamps := range w.buckets {
		if stamps = prune(stamps, cutoff); len(stamps) == 0 {
			delete(w.buckets, key)
		} else {
			w.buckets[key] = stamps
		}
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
