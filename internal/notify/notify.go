// Package notify delivers "content changed" events from the dispatch
// pipeline. The pipeline only ever calls Notify(title, message); transports
// live behind that boundary and must never stall or panic through it, which
// is what Guarded enforces.
package notify

import (
	"log/slog"
	"time"
)

// Notifier receives pipeline events.
type Notifier interface {
	Notify(title, message string)
}

// Log writes notifications to the structured log. It is the default
// transport; desktop notification daemons can stand in behind the same
// interface.
type Log struct{}

func (Log) Notify(title, message string) {
	slog.Info("notification", "title", title, "message", message)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) {}

// DefaultTimeout bounds how long a Guarded notifier waits for delivery.
const DefaultTimeout = time.Second

// Guarded wraps a Notifier so that a slow or panicking transport cannot
// stall or kill the dispatch cycle. Delivery runs on its own goroutine;
// after the timeout the cycle moves on and the delivery finishes (or dies)
// in the background.
type Guarded struct {
	next    Notifier
	timeout time.Duration
}

// NewGuarded wraps next. A non-positive timeout falls back to
// DefaultTimeout.
func NewGuarded(next Notifier, timeout time.Duration) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{next: next, timeout: timeout}
}

func (g *Guarded) Notify(title, message string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("notifier panicked", "panic", r)
			}
		}()
		g.next.Notify(title, message)
	}()

	select {
	case <-done:
	case <-time.After(g.timeout):
		slog.Warn("notifier timed out", "timeout", g.timeout, "title", title)
	}
}
