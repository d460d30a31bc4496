//go:build windows

package clip

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
//
// static DWORD pastemill_sequenceNumber() {
//     return GetClipboardSequenceNumber();
// }
import "C"

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type windowsBackend struct{}

// New returns the Windows clipboard backend, or the in-memory backend when
// the clipboard is unavailable. clipboard.Init is called here rather than in
// init() so that CLI sub-commands (status, pause, history) that never
// construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, using in-memory backend", "err", err)
		return NewMemory()
	}
	return windowsBackend{}
}

func (windowsBackend) Name() string { return "Windows Clipboard" }

func (windowsBackend) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (windowsBackend) Write(content string) error {
	clipboard.Write(clipboard.FmtText, []byte(content))
	return nil
}

// ChangeCount returns the clipboard sequence number, which bumps on every
// write by any process.
func (windowsBackend) ChangeCount() (int64, error) {
	return int64(C.pastemill_sequenceNumber()), nil
}

func (windowsBackend) Close() {}
