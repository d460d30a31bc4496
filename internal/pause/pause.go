// Package pause gates the observer with an externally owned marker file.
// The daemon only ever asks whether the marker exists; creating and removing
// it belongs to the CLI (or to anything else that can touch the filesystem,
// which is the point of using a file).
package pause

import (
	"fmt"
	"os"
	"path/filepath"
)

// MarkerName is the marker file created under the state directory.
const MarkerName = "paused"

// Gate answers pause queries by probing a marker file. The result is never
// cached; every call re-stats the path so an external toggle takes effect on
// the next observer tick.
type Gate struct {
	path string
}

// NewGate returns a Gate over the marker at path.
func NewGate(path string) *Gate {
	return &Gate{path: path}
}

// Path returns the marker file path.
func (g *Gate) Path() string { return g.path }

// Paused reports whether the marker file currently exists.
func (g *Gate) Paused() bool {
	_, err := os.Stat(g.path)
	return err == nil
}

// Pause creates the marker file, creating parent directories as needed.
// Pausing an already paused gate is a no-op.
func (g *Gate) Pause() error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(g.path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("create pause marker: %w", err)
	}
	return nil
}

// Resume removes the marker file. Resuming an already running gate is a
// no-op.
func (g *Gate) Resume() error {
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pause marker: %w", err)
	}
	return nil
}
