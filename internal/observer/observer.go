// Package observer watches the clipboard for changes and feeds them to the
// dispatcher.
//
// Two detection strategies share one loop. Enhanced mode reads the
// platform's cheap change counter each tick and only fetches content when
// the counter moved; its tick interval adapts, tightening while the user is
// actively copying and relaxing after an idle threshold. Polling mode
// fetches content every tick and compares against the last observation. The
// strategy is picked once at construction: a backend that implements
// clip.ChangeCounter and answers the initial probe gets enhanced mode,
// everything else polls.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pastemill/pastemill/internal/clip"
	"github.com/pastemill/pastemill/internal/dispatch"
)

// Mode names the active detection strategy.
type Mode string

const (
	ModeEnhanced Mode = "enhanced"
	ModePolling  Mode = "polling"
)

// Defaults for the loop configuration.
const (
	DefaultActiveInterval       = 100 * time.Millisecond
	DefaultIdleInterval         = time.Second
	DefaultIdleThreshold        = 30 * time.Second
	DefaultPollInterval         = time.Second
	DefaultPauseCheckInterval   = time.Second
	DefaultMaxConsecutiveErrors = 10
	DefaultErrorBackoff         = 500 * time.Millisecond
	DefaultMaxBackoff           = 30 * time.Second
)

// Config tunes the observation loop. Zero values mean the defaults.
type Config struct {
	// ActiveInterval is the enhanced-mode tick interval while the last
	// change is younger than IdleThreshold.
	ActiveInterval time.Duration

	// IdleInterval is the enhanced-mode tick interval once the clipboard
	// has been quiet for IdleThreshold.
	IdleInterval  time.Duration
	IdleThreshold time.Duration

	// PollInterval is the fixed polling-mode tick interval.
	PollInterval time.Duration

	// PauseCheckInterval is the sleep between pause probes while paused.
	PauseCheckInterval time.Duration

	// MaxConsecutiveErrors ends the run once this many clipboard
	// accesses fail in a row.
	MaxConsecutiveErrors int

	// ErrorBackoff is the per-failure backoff increment; the sleep after
	// the n-th consecutive failure is n*ErrorBackoff capped at
	// MaxBackoff.
	ErrorBackoff time.Duration
	MaxBackoff   time.Duration
}

func (c Config) withDefaults() Config {
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = DefaultActiveInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = DefaultIdleInterval
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PauseCheckInterval <= 0 {
		c.PauseCheckInterval = DefaultPauseCheckInterval
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Dispatcher consumes newly observed snapshots.
type Dispatcher interface {
	Dispatch(ctx context.Context, snap dispatch.Snapshot) ([]dispatch.Result, error)
}

// Pauser is the externally owned pause signal, re-checked every tick.
type Pauser interface {
	Paused() bool
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	Ticks       int64 `json:"ticks"`
	Changes     int64 `json:"changes"`
	Dispatches  int64 `json:"dispatches"`
	Errors      int64 `json:"errors"`
	PausedTicks int64 `json:"paused_ticks"`
}

type counters struct {
	ticks       atomic.Int64
	changes     atomic.Int64
	dispatches  atomic.Int64
	errors      atomic.Int64
	pausedTicks atomic.Int64
}

// Observer runs the detection loop. All fields except the counters are
// touched only from the Run goroutine.
type Observer struct {
	cfg     Config
	backend clip.Backend
	counter clip.ChangeCounter // nil in polling mode
	disp    Dispatcher
	gate    Pauser
	mode    Mode

	lastCount       int64
	lastContent     string
	lastChange      time.Time
	consecutiveErrs int

	c counters
}

// New probes backend for the enhanced-mode capability and returns an
// Observer fixed to the resulting mode. gate may be nil when pausing is not
// wired up.
func New(backend clip.Backend, disp Dispatcher, gate Pauser, cfg Config) *Observer {
	o := &Observer{
		cfg:     cfg.withDefaults(),
		backend: backend,
		disp:    disp,
		gate:    gate,
		mode:    ModePolling,
	}
	if cc, ok := backend.(clip.ChangeCounter); ok {
		n, err := cc.ChangeCount()
		if err != nil {
			slog.Warn("change counter probe failed, falling back to polling",
				"backend", backend.Name(), "err", err)
		} else {
			o.counter = cc
			o.lastCount = n
			o.mode = ModeEnhanced
		}
	}
	return o
}

// Mode returns the detection strategy fixed at construction.
func (o *Observer) Mode() Mode { return o.mode }

// Stats returns a snapshot of the loop counters. Safe from any goroutine.
func (o *Observer) Stats() Stats {
	return Stats{
		Ticks:       o.c.ticks.Load(),
		Changes:     o.c.changes.Load(),
		Dispatches:  o.c.dispatches.Load(),
		Errors:      o.c.errors.Load(),
		PausedTicks: o.c.pausedTicks.Load(),
	}
}

// Run blocks observing the clipboard until ctx is cancelled (returns nil)
// or the consecutive-error ceiling is hit (returns the fatal error). The
// clipboard content present at startup is taken as the baseline, not
// dispatched.
func (o *Observer) Run(ctx context.Context) error {
	o.lastChange = time.Now()
	if o.mode == ModePolling {
		if content, err := o.backend.Read(); err == nil {
			o.lastContent = content
		}
	}
	slog.Info("observer started", "mode", o.mode, "backend", o.backend.Name())

	for {
		interval, err := o.tick(ctx)
		if err != nil {
			slog.Error("observer giving up", "err", err)
			return err
		}
		select {
		case <-ctx.Done():
			slog.Info("observer stopped", "reason", ctx.Err())
			return nil
		case <-time.After(interval):
		}
	}
}

// tick runs one cycle and returns the sleep until the next one. The pause
// gate is consulted before anything else; while paused no clipboard access
// happens and no state moves.
func (o *Observer) tick(ctx context.Context) (time.Duration, error) {
	o.c.ticks.Add(1)

	if o.gate != nil && o.gate.Paused() {
		o.c.pausedTicks.Add(1)
		return o.cfg.PauseCheckInterval, nil
	}

	var (
		interval time.Duration
		err      error
	)
	if o.mode == ModeEnhanced {
		interval, err = o.enhancedTick(ctx)
	} else {
		interval, err = o.pollTick(ctx)
	}
	if err != nil {
		o.c.errors.Add(1)
		o.consecutiveErrs++
		if o.consecutiveErrs >= o.cfg.MaxConsecutiveErrors {
			return 0, fmt.Errorf("%d consecutive clipboard failures: %w", o.consecutiveErrs, err)
		}
		backoff := time.Duration(o.consecutiveErrs) * o.cfg.ErrorBackoff
		if backoff > o.cfg.MaxBackoff {
			backoff = o.cfg.MaxBackoff
		}
		slog.Warn("clipboard access failed, backing off",
			"err", err, "consecutive", o.consecutiveErrs, "backoff", backoff)
		return backoff, nil
	}
	o.consecutiveErrs = 0
	return interval, nil
}

// enhancedTick fetches content only when the change counter moved.
func (o *Observer) enhancedTick(ctx context.Context) (time.Duration, error) {
	n, err := o.counter.ChangeCount()
	if err != nil {
		return 0, fmt.Errorf("change count: %w", err)
	}
	if n == o.lastCount {
		return o.enhancedInterval(), nil
	}

	// The counter is consumed only after a successful read, so a
	// transient read failure retries the fetch next tick instead of
	// losing the change.
	content, err := o.backend.Read()
	if err != nil {
		return 0, fmt.Errorf("clipboard read: %w", err)
	}
	o.lastCount = n
	o.lastChange = time.Now()
	o.c.changes.Add(1)
	o.dispatchContent(ctx, content)
	return o.enhancedInterval(), nil
}

func (o *Observer) enhancedInterval() time.Duration {
	if time.Since(o.lastChange) > o.cfg.IdleThreshold {
		return o.cfg.IdleInterval
	}
	return o.cfg.ActiveInterval
}

// pollTick fetches content unconditionally and compares with the last
// observation.
func (o *Observer) pollTick(ctx context.Context) (time.Duration, error) {
	content, err := o.backend.Read()
	if err != nil {
		return 0, fmt.Errorf("clipboard read: %w", err)
	}
	if content == o.lastContent {
		return o.cfg.PollInterval, nil
	}
	o.lastContent = content
	o.lastChange = time.Now()
	o.c.changes.Add(1)

	o.dispatchContent(ctx, content)
	return o.cfg.PollInterval, nil
}

// dispatchContent hands one observation to the dispatcher. Dispatch-side
// problems are not clipboard failures and never count toward the error
// ceiling.
func (o *Observer) dispatchContent(ctx context.Context, content string) {
	if content == "" {
		return
	}
	results, err := o.disp.Dispatch(ctx, dispatch.NewSnapshot(content))
	if err != nil {
		if errors.Is(err, dispatch.ErrInFlight) {
			slog.Debug("dispatch in flight, skipping tick")
			return
		}
		slog.Error("dispatch failed", "err", err)
		return
	}
	if results != nil {
		o.c.dispatches.Add(1)
	}
}
