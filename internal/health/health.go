// Package health tracks per-instance fetch failures and additive-linear
// backoff, so the scheduler can skip hosts that are currently misbehaving
// instead of hammering them.
package health

import (
	"log/slog"
	"sync"
	"time"
)

// backoffUnit is the per-failure backoff increment. Growth is additive
// (failures * backoffUnit), not exponential, and grows without bound until
// a success resets the counter.
const backoffUnit = 30 * time.Second

type record struct {
	failures int
	tryAfter time.Time
}

// Tracker holds backoff state for every instance the crawler has fetched
// from. Safe for concurrent use, though the crawl core itself is
// single-threaded — the admin server only ever reads snapshots, never this
// tracker directly.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*record)}
}

// IsFailing reports whether now is still within the backoff window for the
// given instance. Unknown instances are never failing.
func (t *Tracker) IsFailing(instanceURL string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[instanceURL]
	if !ok {
		return false
	}
	return now.Before(r.tryAfter)
}

// JustFailed records a fetch failure against instanceURL, extending its
// backoff window.
func (t *Tracker) JustFailed(instanceURL string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[instanceURL]
	if !ok {
		r = &record{}
		t.records[instanceURL] = r
	}
	r.failures++
	r.tryAfter = now.Add(time.Duration(r.failures) * backoffUnit)
	slog.Debug("host marked failing", "instance", instanceURL, "failures", r.failures, "try_after", r.tryAfter)
}

// BackOn records a successful fetch against instanceURL, resetting its
// failure counter. Logs once if the instance was previously failing.
func (t *Tracker) BackOn(instanceURL string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[instanceURL]
	if !ok || r.failures == 0 {
		return
	}
	slog.Info("instance back on", "instance", instanceURL, "after_failures", r.failures)
	r.failures = 0
	r.tryAfter = time.Time{}
}

// Failures returns the current failure count for instanceURL (0 if unknown
// or healthy). Used by tests.
func (t *Tracker) Failures(instanceURL string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[instanceURL]; ok {
		return r.failures
	}
	return 0
}
