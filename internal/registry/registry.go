// Package registry tracks the built-in handler modules and their lifecycle.
//
// Modules are a closed, compiled-in set: each is registered as a Builtin
// (name plus build function) in a fixed order, cross-referenced against the
// persisted enable map from the config file, and built lazily on first
// dispatch. A module that fails to build is excluded for the remainder of
// the process; it is never retried. Loading runs on the dispatch goroutine
// while status queries arrive from IPC connection goroutines, so lifecycle
// state is guarded by a lock and leaves the package only as snapshots.
package registry

import (
	"log/slog"
	"sync"
)

// Outcome is what a handler reports for one payload.
type Outcome struct {
	// Handled records whether the handler recognized and acted on the
	// content. It feeds logging and notifications only.
	Handled bool

	// Replacement is new clipboard content, valid only when
	// HasReplacement is set. An empty replacement is distinguishable
	// from no replacement.
	Replacement    string
	HasReplacement bool

	// Note is an optional human-readable line for notifications.
	Note string
}

// Handler processes one clipboard payload. Implementations must be safe to
// call repeatedly from a single goroutine; they are never called
// concurrently.
type Handler interface {
	Process(content string) (Outcome, error)
}

// Builtin is one entry in the compiled-in registration table.
type Builtin struct {
	Name  string
	Build func() (Handler, error)
}

// descriptor is the lifecycle record for one module.
type descriptor struct {
	name    string
	enabled bool

	build   func() (Handler, error)
	loaded  bool
	failed  bool
	handler Handler
}

// ModuleState is a point-in-time copy of one module's lifecycle state.
type ModuleState struct {
	Name    string
	Enabled bool
	Loaded  bool
	Failed  bool
}

// LoadedHandler pairs a built handler with its module name.
type LoadedHandler struct {
	Name    string
	Handler Handler
}

// Registry holds descriptors in registration order. All methods are safe
// for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors []*descriptor
}

// Discover cross-references the builtin table against the persisted enable
// map. A module missing from the map is enabled; disabled modules keep a
// descriptor (for status output) but are never built.
func Discover(builtins []Builtin, enables map[string]bool) *Registry {
	r := &Registry{descriptors: make([]*descriptor, 0, len(builtins))}
	for _, b := range builtins {
		enabled, known := enables[b.Name]
		if !known {
			enabled = true
		}
		r.descriptors = append(r.descriptors, &descriptor{
			name:    b.Name,
			enabled: enabled,
			build:   b.Build,
		})
	}
	return r
}

// States returns a snapshot of every module's lifecycle state in
// registration order.
func (r *Registry) States() []ModuleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleState, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, ModuleState{
			Name:    d.name,
			Enabled: d.enabled,
			Loaded:  d.loaded,
			Failed:  d.failed,
		})
	}
	return out
}

// EnsureLoaded builds every enabled module that has not been built yet.
// Build failures are logged once and mark the descriptor failed; later
// calls skip it.
func (r *Registry) EnsureLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.descriptors {
		if !d.enabled || d.loaded || d.failed {
			continue
		}
		h, err := d.build()
		if err != nil {
			d.failed = true
			slog.Error("module load failed, excluding for this run", "module", d.name, "err", err)
			continue
		}
		d.loaded = true
		d.handler = h
		slog.Debug("module loaded", "module", d.name)
	}
}

// Handlers returns the built handlers in registration order. Disabled and
// failed modules are absent.
func (r *Registry) Handlers() []LoadedHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LoadedHandler, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.loaded {
			out = append(out, LoadedHandler{Name: d.name, Handler: d.handler})
		}
	}
	return out
}
