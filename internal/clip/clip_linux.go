//go:build linux

package clip

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type linuxBackend struct{}

// New returns the Linux clipboard backend, or the in-memory backend if the
// display environment is unavailable (e.g. a headless server without X11 or
// Wayland). X11 and Wayland expose no cheap change counter, so this backend
// does not implement ChangeCounter and the observer falls back to polling.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, using in-memory backend", "err", err)
		return NewMemory()
	}
	return linuxBackend{}
}

func (linuxBackend) Name() string { return "Linux clipboard" }

func (linuxBackend) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (linuxBackend) Write(content string) error {
	clipboard.Write(clipboard.FmtText, []byte(content))
	return nil
}

func (linuxBackend) Close() {}
