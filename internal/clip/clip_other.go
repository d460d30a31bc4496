//go:build !darwin && !windows && !linux

package clip

import "log/slog"

// New returns the in-memory backend on platforms without a system clipboard
// integration.
func New() Backend {
	slog.Warn("no system clipboard on this platform, using in-memory backend")
	return NewMemory()
}
