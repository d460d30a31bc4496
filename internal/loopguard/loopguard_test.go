package loopguard

import "testing"

func TestSeenAfterRecord(t *testing.T) {
	g := New(3)
	if g.Seen("a") {
		t.Fatal("empty guard reported a fingerprint as seen")
	}
	g.Record("a")
	if !g.Seen("a") {
		t.Fatal("recorded fingerprint not reported as seen")
	}
	if g.Seen("b") {
		t.Fatal("unrecorded fingerprint reported as seen")
	}
}

func TestRecordIdempotent(t *testing.T) {
	g := New(3)
	g.Record("a")
	g.Record("b")
	g.Record("a")
	if g.Len() != 2 {
		t.Fatalf("re-recording duplicated an entry: len = %d, want 2", g.Len())
	}

	// "a" moved to the front, so filling the guard evicts "b" first.
	g.Record("c")
	g.Record("d")
	if g.Seen("b") {
		t.Fatal("oldest entry survived eviction")
	}
	if !g.Seen("a") || !g.Seen("c") || !g.Seen("d") {
		t.Fatal("recent entries evicted out of order")
	}
}

func TestCapacityEviction(t *testing.T) {
	g := New(2)
	g.Record("a")
	g.Record("b")
	g.Record("c")
	if g.Seen("a") {
		t.Fatal("entry beyond capacity still tracked")
	}
	if !g.Seen("b") || !g.Seen("c") {
		t.Fatal("entries within capacity were lost")
	}
	if g.Len() != 2 {
		t.Fatalf("len = %d, want 2", g.Len())
	}
}

func TestDefaultCapacity(t *testing.T) {
	g := New(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		g.Record(string(rune('a' + i)))
	}
	if g.Len() != DefaultCapacity {
		t.Fatalf("len = %d, want %d", g.Len(), DefaultCapacity)
	}
}
