// Package registry holds the live, in-memory view of every target the
// exporter currently knows about: its validated configuration plus the
// scheduler's runtime polling state. It is the single point where the
// config watcher, the network scanner, and the scheduler meet.
package registry

import (
	"sync"
	"time"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/model"
)

// PollState is the scheduler's runtime view of a target. The scheduler
// writes these fields while polling; Reconcile additionally clears the
// cached identification and resets NextRun when a reloaded target's
// credentials or poll interval change.
type PollState struct {
	NextRun             time.Time
	ConsecutiveFailures int
	LastResult          model.DeviceReading

	CachedInfo           model.DeviceInfo
	CachedDriver         driver.Driver
	DeviceInfoRefreshed  time.Time
}

// Entry pairs a target's config with its runtime poll state.
type Entry struct {
	Target config.Target
	State  *PollState
}

// Registry is the live set of targets, keyed by config.Target.Key(). It is
// safe for concurrent use by the scheduler, config watcher, and discovery.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// SnapshotEntry is a race-free view of one registry entry: Target is
// copied under the registry lock, State is the stable pointer the
// scheduler is documented to own.
type SnapshotEntry struct {
	Key    string
	Target config.Target
	State  *PollState
}

// Snapshot returns a stable-ordered copy of all current entries, with
// each Target copied under the lock — callers must not reach back into
// the registry's internal *Entry for a Target, since Reconcile can
// rewrite it in place concurrently.
func (r *Registry) Snapshot() []SnapshotEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SnapshotEntry, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, SnapshotEntry{Key: key, Target: e.Target, State: e.State})
	}
	return out
}

// Get looks up a single entry by key.
func (r *Registry) Get(key string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// GetTarget returns a race-free copy of a target's config alongside its
// stable PollState pointer. Callers that hold onto the result across a
// goroutine boundary should use this instead of Get, since Entry.Target
// can be rewritten in place by Reconcile at any time.
func (r *Registry) GetTarget(key string) (config.Target, *PollState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return config.Target{}, nil, false
	}
	return e.Target, e.State, true
}

// Len reports the current number of tracked targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Put inserts a brand new target with a fresh, zero-value poll state. It
// is a no-op if the key already exists — use Reconcile to apply config
// changes to existing entries.
func (r *Registry) Put(t config.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := t.Key()
	if _, exists := r.entries[key]; exists {
		return
	}
	r.entries[key] = &Entry{
		Target: t,
		State:  &PollState{NextRun: time.Now()},
	}
}

// Remove deletes a target entirely, dropping its poll state.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Reconcile applies a fresh set of configured targets to the registry:
// new targets are added with a fresh PollState, removed targets are
// dropped, and targets present in both keep their existing PollState
// (NextRun, failure count) while adopting the new Target config — reload
// never resets in-flight scheduling state for a target whose identity
// (name, host) is unchanged. The cached driver is kept only if both host
// and credentials are unchanged (a credentials change can flip which
// endpoints the device accepts, so the cache is invalidated and
// re-resolved on the next poll); a poll-interval change resets NextRun
// to the current time. It returns the added and removed keys for the caller to log and
// to clean up stale metric series for.
func (r *Registry) Reconcile(targets []config.Target) (added, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]config.Target, len(targets))
	for _, t := range targets {
		wanted[t.Key()] = t
	}

	for key := range r.entries {
		if _, ok := wanted[key]; !ok {
			delete(r.entries, key)
			removed = append(removed, key)
		}
	}

	for key, t := range wanted {
		if e, ok := r.entries[key]; ok {
			if e.Target.Host != t.Host || e.Target.Credentials != t.Credentials {
				e.State.CachedInfo = model.DeviceInfo{}
				e.State.CachedDriver = nil
				e.State.DeviceInfoRefreshed = time.Time{}
			}
			if e.Target.PollInterval != t.PollInterval {
				e.State.NextRun = time.Now()
			}
			e.Target = t
			continue
		}
		r.entries[key] = &Entry{
			Target: t,
			State:  &PollState{NextRun: time.Now()},
		}
		added = append(added, key)
	}

	return added, removed
}
