// Package dispatch runs the handler pipeline for each newly observed
// clipboard change.
//
// A cycle is: loop-guard check, size check, lazy module load, then every
// enabled handler in registration order. One handler's failure never skips
// its siblings, and a handler's replacement is written back to the clipboard
// immediately so later handlers in the same cycle see the updated content
// while the next observer tick does not.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pastemill/pastemill/internal/clip"
	"github.com/pastemill/pastemill/internal/fingerprint"
	"github.com/pastemill/pastemill/internal/loopguard"
	"github.com/pastemill/pastemill/internal/notify"
	"github.com/pastemill/pastemill/internal/registry"
)

// DefaultMaxContentSize is the payload ceiling (10 MiB). Oversized content
// is skipped, not an error.
const DefaultMaxContentSize = 10 << 20

// ErrInFlight is returned when a dispatch is attempted while another one is
// still running. The observer treats it as "skip this tick".
var ErrInFlight = errors.New("dispatch already in flight")

// Snapshot is one observed clipboard state. Snapshots are immutable; a new
// observation creates a new one.
type Snapshot struct {
	Content     string
	Fingerprint string
	CapturedAt  time.Time
}

// NewSnapshot fingerprints content and stamps the capture time.
func NewSnapshot(content string) Snapshot {
	return Snapshot{
		Content:     content,
		Fingerprint: fingerprint.Sum(content),
		CapturedAt:  time.Now(),
	}
}

// Result is one handler's outcome for one cycle.
type Result struct {
	Module   string
	Handled  bool
	Replaced bool
	Err      error
}

// Recorder receives (content, captured-at) pairs after a cycle ran.
// Persistence, dedup on disk and retrieval are entirely its concern.
type Recorder interface {
	Record(ctx context.Context, content string, capturedAt time.Time) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, time.Time) error { return nil }

// Options carries the optional collaborators and limits.
type Options struct {
	// MaxContentSize is the payload ceiling; 0 means
	// DefaultMaxContentSize.
	MaxContentSize int

	// Notifier receives a note per handled module. Defaults to discard.
	Notifier notify.Notifier

	// History receives the original snapshot after each cycle. Defaults
	// to discard.
	History Recorder
}

// Dispatcher drives handler modules against clipboard snapshots.
type Dispatcher struct {
	backend  clip.Backend
	guard    *loopguard.Guard
	registry *registry.Registry
	notifier notify.Notifier
	history  Recorder
	maxSize  int

	// mu is the reentrancy guard: at most one dispatch in flight,
	// enforced structurally rather than by convention.
	mu sync.Mutex
}

// New returns a Dispatcher over backend, guard and reg.
func New(backend clip.Backend, guard *loopguard.Guard, reg *registry.Registry, opts Options) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		guard:    guard,
		registry: reg,
		notifier: opts.Notifier,
		history:  opts.History,
		maxSize:  opts.MaxContentSize,
	}
	if d.notifier == nil {
		d.notifier = notify.Nop{}
	}
	if d.history == nil {
		d.history = nopRecorder{}
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxContentSize
	}
	return d
}

// Dispatch runs one cycle for snap. It returns nil results with no error
// when the snapshot was filtered out before any handler ran (loop guard hit
// or oversized content); a non-nil empty slice means the pipeline ran with
// no enabled handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, snap Snapshot) ([]Result, error) {
	if !d.mu.TryLock() {
		return nil, ErrInFlight
	}
	defer d.mu.Unlock()

	if d.guard.Seen(snap.Fingerprint) {
		slog.Debug("suppressed by loop guard", "fingerprint", fingerprint.Short(snap.Fingerprint))
		return nil, nil
	}
	d.guard.Record(snap.Fingerprint)

	if len(snap.Content) > d.maxSize {
		slog.Debug("content exceeds size ceiling, skipping",
			"bytes", len(snap.Content), "max", d.maxSize)
		return nil, nil
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("processing clipboard content",
			"bytes", len(snap.Content), "preview", preview(snap.Content))
	}

	d.registry.EnsureLoaded()
	handlers := d.registry.Handlers()

	content := snap.Content
	results := make([]Result, 0, len(handlers))
	var replacers []string

	for _, h := range handlers {
		out, err := invoke(h, content)
		res := Result{Module: h.Name, Handled: out.Handled, Err: err}

		if err != nil {
			slog.Error("module failed", "module", h.Name, "err", err)
			results = append(results, res)
			continue
		}

		if out.Handled && out.Note != "" {
			d.notifier.Notify(h.Name, out.Note)
		}

		if out.HasReplacement {
			if werr := d.backend.Write(out.Replacement); werr != nil {
				res.Err = fmt.Errorf("write replacement: %w", werr)
				slog.Error("clipboard write failed", "module", h.Name, "err", werr)
			} else {
				d.guard.Record(fingerprint.Sum(out.Replacement))
				content = out.Replacement
				res.Replaced = true
				replacers = append(replacers, h.Name)
			}
		}

		results = append(results, res)
	}

	if len(replacers) > 1 {
		slog.Warn("multiple modules replaced content in one cycle, last write wins",
			"modules", strings.Join(replacers, ","))
	}

	if err := d.history.Record(ctx, snap.Content, snap.CapturedAt); err != nil {
		slog.Warn("history record failed", "err", err)
	}

	slog.Debug("dispatch complete",
		"fingerprint", fingerprint.Short(snap.Fingerprint),
		"modules", len(results),
		"handled", countHandled(results))
	return results, nil
}

// invoke shields the pipeline from a panicking handler.
func invoke(h registry.LoadedHandler, content string) (out registry.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %s panicked: %v", h.Name, r)
		}
	}()
	return h.Handler.Process(content)
}

func countHandled(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Handled {
			n++
		}
	}
	return n
}

// preview flattens content to one line and caps it at 120 bytes for debug
// logging.
func preview(content string) string {
	flat := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, content)
	if len(flat) > 120 {
		return flat[:120] + "…"
	}
	return flat
}
