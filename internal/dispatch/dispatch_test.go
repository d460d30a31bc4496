package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pastemill/pastemill/internal/clip"
	"github.com/pastemill/pastemill/internal/fingerprint"
	"github.com/pastemill/pastemill/internal/loopguard"
	"github.com/pastemill/pastemill/internal/modules"
	"github.com/pastemill/pastemill/internal/registry"
)

type handlerFunc func(string) (registry.Outcome, error)

func (f handlerFunc) Process(c string) (registry.Outcome, error) { return f(c) }

func builtin(name string, fn handlerFunc) registry.Builtin {
	return registry.Builtin{
		Name:  name,
		Build: func() (registry.Handler, error) { return fn, nil },
	}
}

func newDispatcher(t *testing.T, backend clip.Backend, builtins []registry.Builtin, opts Options) (*Dispatcher, *loopguard.Guard) {
	t.Helper()
	guard := loopguard.New(10)
	reg := registry.Discover(builtins, nil)
	return New(backend, guard, reg, opts), guard
}

func TestIdempotentSuppression(t *testing.T) {
	invocations := 0
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("count", func(string) (registry.Outcome, error) {
			invocations++
			return registry.Outcome{Handled: true}, nil
		}),
	}, Options{})

	ctx := context.Background()
	first, err := d.Dispatch(ctx, NewSnapshot("same content"))
	if err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	if len(first) != 1 || invocations != 1 {
		t.Fatalf("first cycle: results=%d invocations=%d", len(first), invocations)
	}

	second, err := d.Dispatch(ctx, NewSnapshot("same content"))
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if second != nil {
		t.Fatalf("suppressed cycle returned results: %+v", second)
	}
	if invocations != 1 {
		t.Fatalf("handler ran %d times, want 1", invocations)
	}
}

func TestNoSelfFeedback(t *testing.T) {
	mem := clip.NewMemory()
	calls := 0
	d, _ := newDispatcher(t, mem, []registry.Builtin{
		builtin("rewriter", func(content string) (registry.Outcome, error) {
			calls++
			return registry.Outcome{Handled: true, Replacement: "B", HasReplacement: true}, nil
		}),
	}, Options{})

	ctx := context.Background()
	if _, err := d.Dispatch(ctx, NewSnapshot("A")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, _ := mem.Read()
	if got != "B" {
		t.Fatalf("clipboard = %q, want %q", got, "B")
	}

	// The next observation sees "B" — the handler's own write — and must
	// not dispatch it.
	results, err := d.Dispatch(ctx, NewSnapshot("B"))
	if err != nil {
		t.Fatalf("Dispatch of replacement: %v", err)
	}
	if results != nil || calls != 1 {
		t.Fatalf("replacement was re-dispatched: results=%v calls=%d", results, calls)
	}
}

func TestFixedOrder(t *testing.T) {
	var order []string
	record := func(name string) handlerFunc {
		return func(string) (registry.Outcome, error) {
			order = append(order, name)
			return registry.Outcome{Handled: true}, nil
		}
	}
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("h1", record("h1")),
		builtin("h2", record("h2")),
		builtin("h3", record("h3")),
	}, Options{})

	for i := 0; i < 3; i++ {
		order = order[:0]
		if _, err := d.Dispatch(context.Background(), NewSnapshot("content "+strings.Repeat("x", i))); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if strings.Join(order, ",") != "h1,h2,h3" {
			t.Fatalf("run %d order = %v", i, order)
		}
	}
}

func TestFaultIsolation(t *testing.T) {
	var order []string
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("ok1", func(string) (registry.Outcome, error) {
			order = append(order, "ok1")
			return registry.Outcome{Handled: true}, nil
		}),
		builtin("bad-error", func(string) (registry.Outcome, error) {
			order = append(order, "bad-error")
			return registry.Outcome{}, errors.New("boom")
		}),
		builtin("bad-panic", func(string) (registry.Outcome, error) {
			order = append(order, "bad-panic")
			panic("kaboom")
		}),
		builtin("ok2", func(string) (registry.Outcome, error) {
			order = append(order, "ok2")
			return registry.Outcome{Handled: true}, nil
		}),
	}, Options{})

	results, err := d.Dispatch(context.Background(), NewSnapshot("content"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if strings.Join(order, ",") != "ok1,bad-error,bad-panic,ok2" {
		t.Fatalf("order = %v", order)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if results[0].Err != nil || !results[0].Handled {
		t.Fatalf("ok1 affected by siblings: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatal("error not captured for bad-error")
	}
	if results[2].Err == nil || !strings.Contains(results[2].Err.Error(), "panicked") {
		t.Fatalf("panic not captured: %+v", results[2])
	}
	if results[3].Err != nil || !results[3].Handled {
		t.Fatalf("ok2 affected by siblings: %+v", results[3])
	}
}

func TestSizeCeiling(t *testing.T) {
	invocations := 0
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("count", func(string) (registry.Outcome, error) {
			invocations++
			return registry.Outcome{Handled: true}, nil
		}),
	}, Options{MaxContentSize: 16})

	ctx := context.Background()

	over, err := d.Dispatch(ctx, NewSnapshot(strings.Repeat("x", 17)))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if over != nil || invocations != 0 {
		t.Fatalf("oversized content reached a handler: results=%v invocations=%d", over, invocations)
	}

	at, err := d.Dispatch(ctx, NewSnapshot(strings.Repeat("y", 16)))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(at) != 1 || invocations != 1 {
		t.Fatalf("content at the ceiling was rejected: results=%v invocations=%d", at, invocations)
	}
}

// The end-to-end conversion scenario with the real modules: markdown input,
// markdown and diagram modules enabled, html disabled via the enable map.
func TestMarkdownDiagramScenario(t *testing.T) {
	mem := clip.NewMemory()
	guard := loopguard.New(10)
	reg := registry.Discover(modules.Builtins(), map[string]bool{"html": false})
	d := New(mem, guard, reg, Options{})

	original := "# Title\n**bold**"
	results, err := d.Dispatch(context.Background(), NewSnapshot(original))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want markdown and diagram only: %+v", len(results), results)
	}

	md, diag := results[0], results[1]
	if md.Module != "markdown" || !md.Handled || !md.Replaced {
		t.Fatalf("markdown result = %+v", md)
	}
	if diag.Module != "diagram" || diag.Handled {
		t.Fatalf("diagram result = %+v", diag)
	}

	clipboard, _ := mem.Read()
	if !strings.HasPrefix(clipboard, `{\rtf1`) {
		t.Fatalf("clipboard does not hold the RTF replacement: %q", clipboard)
	}
	if !guard.Seen(fingerprint.Sum(original)) {
		t.Fatal("guard lost the original fingerprint")
	}
	if !guard.Seen(fingerprint.Sum(clipboard)) {
		t.Fatal("guard misses the replacement fingerprint")
	}
}

func TestReentrancyRefused(t *testing.T) {
	mem := clip.NewMemory()
	guard := loopguard.New(10)

	var d *Dispatcher
	var nestedErr error
	reg := registry.Discover([]registry.Builtin{
		builtin("nested", func(string) (registry.Outcome, error) {
			_, nestedErr = d.Dispatch(context.Background(), NewSnapshot("nested attempt"))
			return registry.Outcome{Handled: true}, nil
		}),
	}, nil)
	d = New(mem, guard, reg, Options{})

	if _, err := d.Dispatch(context.Background(), NewSnapshot("outer")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !errors.Is(nestedErr, ErrInFlight) {
		t.Fatalf("nested dispatch error = %v, want ErrInFlight", nestedErr)
	}
}

type captureRecorder struct {
	contents []string
	times    []time.Time
	err      error
}

func (r *captureRecorder) Record(_ context.Context, content string, at time.Time) error {
	r.contents = append(r.contents, content)
	r.times = append(r.times, at)
	return r.err
}

func TestHistoryReceivesOriginalContent(t *testing.T) {
	rec := &captureRecorder{}
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("rewriter", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: true, Replacement: "rewritten", HasReplacement: true}, nil
		}),
	}, Options{History: rec})

	snap := NewSnapshot("what the user copied")
	if _, err := d.Dispatch(context.Background(), snap); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rec.contents) != 1 || rec.contents[0] != "what the user copied" {
		t.Fatalf("history got %v, want the original content", rec.contents)
	}
	if !rec.times[0].Equal(snap.CapturedAt) {
		t.Fatalf("history time = %v, want %v", rec.times[0], snap.CapturedAt)
	}

	// A failing recorder must not fail the cycle.
	rec.err = errors.New("disk full")
	if _, err := d.Dispatch(context.Background(), NewSnapshot("second copy")); err != nil {
		t.Fatalf("Dispatch with failing recorder: %v", err)
	}
}

type captureNotifier struct {
	titles, messages []string
}

func (n *captureNotifier) Notify(title, message string) {
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
}

func TestNotifierReceivesNotes(t *testing.T) {
	not := &captureNotifier{}
	d, _ := newDispatcher(t, clip.NewMemory(), []registry.Builtin{
		builtin("noisy", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: true, Note: "did a thing"}, nil
		}),
		builtin("quiet", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: true}, nil
		}),
		builtin("decliner", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: false, Note: "should not fire"}, nil
		}),
	}, Options{Notifier: not})

	if _, err := d.Dispatch(context.Background(), NewSnapshot("content")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(not.titles) != 1 || not.titles[0] != "noisy" || not.messages[0] != "did a thing" {
		t.Fatalf("notifications = %v / %v", not.titles, not.messages)
	}
}

func TestLastReplacementWins(t *testing.T) {
	mem := clip.NewMemory()
	var secondSaw string
	guard := loopguard.New(10)
	reg := registry.Discover([]registry.Builtin{
		builtin("first", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: true, Replacement: "from-first", HasReplacement: true}, nil
		}),
		builtin("second", func(content string) (registry.Outcome, error) {
			secondSaw = content
			return registry.Outcome{Handled: true, Replacement: "from-second", HasReplacement: true}, nil
		}),
	}, nil)
	d := New(mem, guard, reg, Options{})

	if _, err := d.Dispatch(context.Background(), NewSnapshot("original")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// The second handler must see the first replacement, and its own
	// write ends up on the clipboard.
	if secondSaw != "from-first" {
		t.Fatalf("second handler saw %q, want %q", secondSaw, "from-first")
	}
	clipboard, _ := mem.Read()
	if clipboard != "from-second" {
		t.Fatalf("clipboard = %q, want %q", clipboard, "from-second")
	}
	for _, fp := range []string{
		fingerprint.Sum("original"),
		fingerprint.Sum("from-first"),
		fingerprint.Sum("from-second"),
	} {
		if !guard.Seen(fp) {
			t.Fatal("guard misses a fingerprint from the cycle")
		}
	}
}

type brokenBackend struct {
	*clip.Memory
	writeErr error
}

func (b *brokenBackend) Write(content string) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.Memory.Write(content)
}

func TestWriteFailureDoesNotAdvanceContent(t *testing.T) {
	backend := &brokenBackend{Memory: clip.NewMemory(), writeErr: errors.New("clipboard busy")}
	var secondSaw string
	d, _ := newDispatcher(t, backend, []registry.Builtin{
		builtin("rewriter", func(string) (registry.Outcome, error) {
			return registry.Outcome{Handled: true, Replacement: "rewritten", HasReplacement: true}, nil
		}),
		builtin("witness", func(content string) (registry.Outcome, error) {
			secondSaw = content
			return registry.Outcome{Handled: false}, nil
		}),
	}, Options{})

	results, err := d.Dispatch(context.Background(), NewSnapshot("original"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if results[0].Err == nil || results[0].Replaced {
		t.Fatalf("failed write not surfaced: %+v", results[0])
	}
	if secondSaw != "original" {
		t.Fatalf("later handler saw %q after a failed write, want the original", secondSaw)
	}
}

func TestNoHandlersStillRuns(t *testing.T) {
	d, guard := newDispatcher(t, clip.NewMemory(), nil, Options{})
	results, err := d.Dispatch(context.Background(), NewSnapshot("content"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("results = %v, want empty non-nil", results)
	}
	if !guard.Seen(fingerprint.Sum("content")) {
		t.Fatal("fingerprint not recorded")
	}
}
