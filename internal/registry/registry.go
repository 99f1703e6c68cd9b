package registry

import (
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logwatchd/internal/filter"
	"github.com/tinytelemetry/logwatchd/internal/model"
	"github.com/tinytelemetry/logwatchd/internal/sink"
)

// Entry is one active listener in a dispatch snapshot.
type Entry struct {
	Kind   model.EventKind
	Sink   sink.Sink
	Filter filter.Filter
}

// watchSlot boxes the watch sink so the whole slot can be swapped atomically.
type watchSlot struct {
	sink sink.Sink
}

// Registry maps the fixed set of event kinds to (sink, filter) pairs. The
// persist and debug slots are guarded by one mutex; the watch slot lives in
// an atomic pointer so it can be cleared without taking the lock when a
// forwarding write breaks mid-dispatch.
//
// Replacement policy: installing a sink over an active slot closes the
// previous sink; callers never hold a handle the registry still owns.
type Registry struct {
	mu      sync.Mutex
	persist sink.Sink // nil when inactive
	debug   sink.Sink // nil when inactive

	watch atomic.Pointer[watchSlot]

	filters map[model.EventKind]filter.Filter
}

// New creates a registry with every slot inactive and the fixed filter per
// kind: process-start events for watch, severity-gated product lines for
// persist, and everything but process-start for debug.
func New() *Registry {
	return &Registry{
		filters: map[model.EventKind]filter.Filter{
			model.EventWatch:   filter.ProcStart,
			model.EventPersist: filter.ProductLog,
			model.EventDebug:   filter.DebugCatchAll,
		},
	}
}

// SetSink installs or replaces a slot's sink. A replaced sink is closed.
func (r *Registry) SetSink(kind model.EventKind, s sink.Sink) {
	switch kind {
	case model.EventWatch:
		prev := r.watch.Swap(&watchSlot{sink: s})
		if prev != nil && prev.sink != nil {
			_ = prev.sink.Close()
		}
	case model.EventPersist:
		r.mu.Lock()
		prev := r.persist
		r.persist = s
		r.mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}
	case model.EventDebug:
		r.mu.Lock()
		prev := r.debug
		r.debug = s
		r.mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}
	}
}

// ClearSink deactivates a slot, closing its sink if one was active. The
// watch variant never takes the registry lock; it is safe to call while a
// dispatch snapshot is in progress.
func (r *Registry) ClearSink(kind model.EventKind) {
	switch kind {
	case model.EventWatch:
		prev := r.watch.Swap(nil)
		if prev != nil && prev.sink != nil {
			_ = prev.sink.Close()
		}
	case model.EventPersist:
		r.mu.Lock()
		prev := r.persist
		r.persist = nil
		r.mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}
	case model.EventDebug:
		r.mu.Lock()
		prev := r.debug
		r.debug = nil
		r.mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}
	}
}

// Active reports whether a slot currently has a sink installed.
func (r *Registry) Active(kind model.EventKind) bool {
	switch kind {
	case model.EventWatch:
		slot := r.watch.Load()
		return slot != nil && slot.sink != nil
	case model.EventPersist:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.persist != nil
	case model.EventDebug:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.debug != nil
	default:
		return false
	}
}

// ActiveSinks snapshots the active slots in enumeration order. The lock is
// released before the caller writes to any sink, so a slow sink never stalls
// registry access.
func (r *Registry) ActiveSinks() []Entry {
	entries := make([]Entry, 0, len(r.filters))

	if slot := r.watch.Load(); slot != nil && slot.sink != nil {
		entries = append(entries, Entry{
			Kind:   model.EventWatch,
			Sink:   slot.sink,
			Filter: r.filters[model.EventWatch],
		})
	}

	r.mu.Lock()
	if r.persist != nil {
		entries = append(entries, Entry{
			Kind:   model.EventPersist,
			Sink:   r.persist,
			Filter: r.filters[model.EventPersist],
		})
	}
	if r.debug != nil {
		entries = append(entries, Entry{
			Kind:   model.EventDebug,
			Sink:   r.debug,
			Filter: r.filters[model.EventDebug],
		})
	}
	r.mu.Unlock()

	return entries
}

// CloseAll clears every slot, closing any active descriptors. Used when the
// dispatcher disables logging permanently or shuts down.
func (r *Registry) CloseAll() {
	for _, kind := range model.Kinds() {
		r.ClearSink(kind)
	}
}
