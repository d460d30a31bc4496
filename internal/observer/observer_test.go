package observer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pastemill/pastemill/internal/dispatch"
)

// textBackend is a clipboard without a change counter, forcing polling mode.
type textBackend struct {
	mu      sync.Mutex
	content string
	err     error
	reads   atomic.Int64
}

func (b *textBackend) Name() string { return "fake text" }

func (b *textBackend) Read() (string, error) {
	b.reads.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	return b.content, nil
}

func (b *textBackend) Write(content string) error {
	b.set(content)
	return nil
}

func (b *textBackend) Close() {}

func (b *textBackend) set(content string) {
	b.mu.Lock()
	b.content = content
	b.mu.Unlock()
}

func (b *textBackend) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// counterBackend adds the enhanced-mode capability.
type counterBackend struct {
	textBackend
	cmu      sync.Mutex
	count    int64
	countErr error
}

func (b *counterBackend) ChangeCount() (int64, error) {
	b.cmu.Lock()
	defer b.cmu.Unlock()
	if b.countErr != nil {
		return 0, b.countErr
	}
	return b.count, nil
}

// bump models a copy: new content plus a counter increment.
func (b *counterBackend) bump(content string) {
	b.set(content)
	b.cmu.Lock()
	b.count++
	b.cmu.Unlock()
}

type fakeDispatcher struct {
	mu       sync.Mutex
	contents []string
	calls    atomic.Int64
}

func (f *fakeDispatcher) Dispatch(_ context.Context, snap dispatch.Snapshot) ([]dispatch.Result, error) {
	f.mu.Lock()
	f.contents = append(f.contents, snap.Content)
	f.mu.Unlock()
	f.calls.Add(1)
	return []dispatch.Result{}, nil
}

func (f *fakeDispatcher) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contents) == 0 {
		return ""
	}
	return f.contents[len(f.contents)-1]
}

type fakeGate struct{ paused atomic.Bool }

func (g *fakeGate) Paused() bool { return g.paused.Load() }

func fastConfig() Config {
	return Config{
		ActiveInterval:       2 * time.Millisecond,
		IdleInterval:         5 * time.Millisecond,
		IdleThreshold:        time.Second,
		PollInterval:         2 * time.Millisecond,
		PauseCheckInterval:   2 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		ErrorBackoff:         time.Millisecond,
		MaxBackoff:           5 * time.Millisecond,
	}
}

func start(t *testing.T, o *Observer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("observer did not stop")
		}
	})
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestModeSelection(t *testing.T) {
	disp := &fakeDispatcher{}

	if o := New(&counterBackend{}, disp, nil, Config{}); o.Mode() != ModeEnhanced {
		t.Fatalf("counter backend got mode %s, want enhanced", o.Mode())
	}
	if o := New(&textBackend{}, disp, nil, Config{}); o.Mode() != ModePolling {
		t.Fatalf("plain backend got mode %s, want polling", o.Mode())
	}

	broken := &counterBackend{countErr: errors.New("no pasteboard")}
	if o := New(broken, disp, nil, Config{}); o.Mode() != ModePolling {
		t.Fatalf("failed counter probe got mode %s, want polling", o.Mode())
	}
}

func TestPollingDetectsAndDedupes(t *testing.T) {
	b := &textBackend{}
	disp := &fakeDispatcher{}
	o := New(b, disp, nil, fastConfig())
	start(t, o)

	waitUntil(t, "a tick", func() bool { return o.Stats().Ticks >= 1 })
	b.set("hello")
	waitUntil(t, "first dispatch", func() bool { return disp.calls.Load() == 1 })
	if disp.last() != "hello" {
		t.Fatalf("dispatched %q, want %q", disp.last(), "hello")
	}

	// Identical content over many ticks must not dispatch again.
	before := o.Stats().Ticks
	waitUntil(t, "ten more ticks", func() bool { return o.Stats().Ticks >= before+10 })
	if n := disp.calls.Load(); n != 1 {
		t.Fatalf("identical content dispatched %d times, want 1", n)
	}

	b.set("world")
	waitUntil(t, "second dispatch", func() bool { return disp.calls.Load() == 2 })
	if disp.last() != "world" {
		t.Fatalf("dispatched %q, want %q", disp.last(), "world")
	}
	if o.Stats().Dispatches != 2 || o.Stats().Changes != 2 {
		t.Fatalf("stats = %+v", o.Stats())
	}
}

func TestPollingBaselineNotDispatched(t *testing.T) {
	b := &textBackend{content: "stale from before launch"}
	disp := &fakeDispatcher{}
	o := New(b, disp, nil, fastConfig())
	start(t, o)

	waitUntil(t, "several ticks", func() bool { return o.Stats().Ticks >= 5 })
	if n := disp.calls.Load(); n != 0 {
		t.Fatalf("startup content dispatched %d times, want 0", n)
	}
}

func TestEnhancedFetchesOnlyOnCounterChange(t *testing.T) {
	b := &counterBackend{}
	disp := &fakeDispatcher{}
	o := New(b, disp, nil, fastConfig())
	if o.Mode() != ModeEnhanced {
		t.Fatalf("mode = %s", o.Mode())
	}
	start(t, o)

	// A static counter must never trigger a content fetch.
	waitUntil(t, "several ticks", func() bool { return o.Stats().Ticks >= 5 })
	if n := b.reads.Load(); n != 0 {
		t.Fatalf("content fetched %d times without a counter change", n)
	}

	b.bump("fresh copy")
	waitUntil(t, "dispatch after bump", func() bool { return disp.calls.Load() == 1 })
	if disp.last() != "fresh copy" {
		t.Fatalf("dispatched %q", disp.last())
	}
	if b.reads.Load() == 0 {
		t.Fatal("counter change did not trigger a content fetch")
	}
}

func TestPauseBlocksAllClipboardAccess(t *testing.T) {
	b := &textBackend{}
	disp := &fakeDispatcher{}
	gate := &fakeGate{}
	gate.paused.Store(true)
	o := New(b, disp, gate, fastConfig())
	start(t, o)

	waitUntil(t, "paused ticks", func() bool { return o.Stats().PausedTicks >= 5 })
	// The only read is the startup baseline.
	if n := b.reads.Load(); n != 1 {
		t.Fatalf("clipboard read %d times while paused, want 1 (baseline)", n)
	}
	if disp.calls.Load() != 0 {
		t.Fatal("dispatch happened while paused")
	}

	// Content copied during the pause is picked up on resume.
	b.set("copied while paused")
	gate.paused.Store(false)
	waitUntil(t, "dispatch after resume", func() bool { return disp.calls.Load() == 1 })
	if disp.last() != "copied while paused" {
		t.Fatalf("dispatched %q", disp.last())
	}
}

func TestConsecutiveErrorCeilingIsFatal(t *testing.T) {
	b := &textBackend{}
	b.setErr(errors.New("pasteboard gone"))
	disp := &fakeDispatcher{}
	o := New(b, disp, nil, fastConfig())

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil after hitting the error ceiling")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on consecutive errors")
	}
	if n := o.Stats().Errors; n != 3 {
		t.Fatalf("errors = %d, want 3", n)
	}
	if disp.calls.Load() != 0 {
		t.Fatal("dispatch happened despite failing reads")
	}
}

func TestErrorRecoveryResetsTheStreak(t *testing.T) {
	b := &textBackend{}
	disp := &fakeDispatcher{}
	cfg := fastConfig()
	cfg.MaxConsecutiveErrors = 50
	o := New(b, disp, nil, cfg)
	start(t, o)

	waitUntil(t, "a tick", func() bool { return o.Stats().Ticks >= 1 })

	// A burst of failures below the ceiling, then recovery.
	b.setErr(errors.New("transient"))
	waitUntil(t, "some errors", func() bool { return o.Stats().Errors >= 3 })
	b.setErr(nil)
	b.set("after recovery")
	waitUntil(t, "dispatch after recovery", func() bool { return disp.calls.Load() >= 1 })

	// A second burst: the loop survives it because the streak reset.
	first := o.Stats().Errors
	b.setErr(errors.New("transient again"))
	waitUntil(t, "more errors", func() bool { return o.Stats().Errors >= first+3 })
	b.setErr(nil)
	b.set("still alive")
	waitUntil(t, "final dispatch", func() bool { return disp.last() == "still alive" })
}

func TestEnhancedIntervalAdapts(t *testing.T) {
	cfg := Config{
		ActiveInterval: 7 * time.Millisecond,
		IdleInterval:   90 * time.Millisecond,
		IdleThreshold:  50 * time.Millisecond,
	}
	o := New(&counterBackend{}, &fakeDispatcher{}, nil, cfg)

	o.lastChange = time.Now()
	if got := o.enhancedInterval(); got != cfg.ActiveInterval {
		t.Fatalf("interval while active = %v, want %v", got, cfg.ActiveInterval)
	}
	o.lastChange = time.Now().Add(-100 * time.Millisecond)
	if got := o.enhancedInterval(); got != cfg.IdleInterval {
		t.Fatalf("interval while idle = %v, want %v", got, cfg.IdleInterval)
	}
}

func TestEmptyClipboardNeverDispatched(t *testing.T) {
	b := &textBackend{content: "something"}
	disp := &fakeDispatcher{}
	o := New(b, disp, nil, fastConfig())
	start(t, o)

	waitUntil(t, "a tick", func() bool { return o.Stats().Ticks >= 1 })
	b.set("")
	waitUntil(t, "ticks after clearing", func() bool { return o.Stats().Ticks >= 10 })
	if disp.calls.Load() != 0 {
		t.Fatal("cleared clipboard was dispatched")
	}
}
