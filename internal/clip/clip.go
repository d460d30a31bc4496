// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  — Windows via golang.design/x/clipboard + cgo GetClipboardSequenceNumber
//	clip_linux.go    — Linux via golang.design/x/clipboard (no change counter)
//	clip_other.go    — everything else: in-memory backend
//
// The pipeline only needs text in and text out; richer clipboard flavors are
// out of scope. Backends that can answer "has anything changed" cheaply
// additionally implement ChangeCounter, which the observer probes to pick
// its detection mode.
package clip

// Backend is the interface all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current text clipboard content. An empty string
	// means the clipboard is empty or holds no text.
	Read() (string, error)

	// Write replaces the clipboard content.
	Write(content string) error

	// Close releases any resources held by the backend.
	Close()
}

// ChangeCounter is the optional capability behind enhanced change detection.
// Implementations expose the platform's monotonically bumping clipboard
// counter; any write by any process changes the value. Backends without a
// cheap counter simply do not implement this interface.
type ChangeCounter interface {
	ChangeCount() (int64, error)
}
