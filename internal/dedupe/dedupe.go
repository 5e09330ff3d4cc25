// Package dedupe suppresses repeated emissions inside a time window and
// coalesces concurrent snapshot builds for the same battle.
package dedupe

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CriminalTalent/battle-system-sub001/internal/keys"
)

const (
	DefaultLineWindow     = time.Second
	DefaultSnapshotWindow = 100 * time.Millisecond
)

// Window remembers when each (battle, kind, signature) was last let through
// and rejects repeats that arrive before the kind's window has passed.
type Window struct {
	mu        sync.Mutex
	now       func() time.Time
	fallback  time.Duration
	windows   map[string]time.Duration
	seen      map[string]time.Time
	lastPrune time.Time
}

// NewWindow returns a Window that uses fallback for kinds without an explicit
// window. A nil now uses time.Now.
func NewWindow(now func() time.Time, fallback time.Duration) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{
		now:      now,
		fallback: fallback,
		windows:  map[string]time.Duration{},
		seen:     map[string]time.Time{},
	}
}

// SetWindow overrides the window for one kind. Zero disables suppression.
func (w *Window) SetWindow(kind string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windows[kind] = d
}

func (w *Window) windowFor(kind string) time.Duration {
	if d, ok := w.windows[kind]; ok {
		return d
	}
	return w.fallback
}

// Allow reports whether the emission should go out, and records it if so.
func (w *Window) Allow(battleID, kind, signature string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.windowFor(kind)
	if d <= 0 {
		return true
	}
	now := w.now()
	k := keys.EventKey(battleID, kind, signature)
	if last, ok := w.seen[k]; ok && now.Sub(last) < d {
		return false
	}
	w.seen[k] = now
	w.pruneLocked(now)
	return true
}

func (w *Window) maxWindowLocked() time.Duration {
	longest := w.fallback
	for _, d := range w.windows {
		if d > longest {
			longest = d
		}
	}
	return longest
}

func (w *Window) pruneLocked(now time.Time) {
	longest := w.maxWindowLocked()
	if now.Sub(w.lastPrune) < longest {
		return
	}
	w.lastPrune = now
	for k, at := range w.seen {
		if now.Sub(at) >= longest {
			delete(w.seen, k)
		}
	}
}

// Forget drops every record for battleID.
func (w *Window) Forget(battleID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := battleID + "|"
	for k := range w.seen {
		if strings.HasPrefix(k, prefix) {
			delete(w.seen, k)
		}
	}
}

// Len is the number of remembered emissions.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Coalescer lets only one snapshot build run per key; concurrent callers for
// the same key wait and share its result.
type Coalescer struct {
	group singleflight.Group
}

// Do runs fn once per in-flight key. shared reports whether the result was
// handed to more than one caller.
func (c *Coalescer) Do(key string, fn func() ([]byte, error)) (b []byte, shared bool, err error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, shared, err
	}
	b, _ = v.([]byte)
	return b, shared, nil
}
