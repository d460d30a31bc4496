//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger pastemill_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type darwinBackend struct{}

// New returns the macOS clipboard backend, or the in-memory backend when the
// pasteboard is unavailable. clipboard.Init is called here rather than in
// init() so that CLI sub-commands (status, pause, history) that never
// construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, using in-memory backend", "err", err)
		return NewMemory()
	}
	return darwinBackend{}
}

func (darwinBackend) Name() string { return "macOS NSPasteboard" }

func (darwinBackend) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (darwinBackend) Write(content string) error {
	clipboard.Write(clipboard.FmtText, []byte(content))
	return nil
}

// ChangeCount returns NSPasteboard's changeCount, which bumps on every
// write by any process. Reading it costs far less than fetching content.
func (darwinBackend) ChangeCount() (int64, error) {
	return int64(C.pastemill_changeCount()), nil
}

func (darwinBackend) Close() {}
