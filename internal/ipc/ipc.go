// Package ipc provides helpers for the local Unix-socket control channel
// used by CLI commands (status) to talk to a running pastemill daemon.
//
// The channel carries newline-delimited JSON (internal/wire). The daemon
// listens on the socket; CLI sub-commands probe for it and report when no
// daemon is up.
package ipc

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const dialTimeout = 2 * time.Second

// SocketPath returns the platform-appropriate path for the control socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/pastemill.sock, else $TMPDIR/pastemill.sock
//   - macOS:   $TMPDIR/pastemill.sock
//   - Windows: \\.\pipe\pastemill (named pipe — not yet implemented)
//
// $PASTEMILL_SOCKET overrides everything.
func SocketPath() string {
	if s := os.Getenv("PASTEMILL_SOCKET"); s != "" {
		return s
	}
	if runtime.GOOS == "windows" {
		return `\\.\pipe\pastemill`
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pastemill.sock")
	}
	return filepath.Join(os.TempDir(), "pastemill.sock")
}

// IsRunning reports whether a pastemill daemon appears to be listening on
// the control socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := net.DialTimeout("unix", SocketPath(), dialTimeout)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates and returns a net.Listener on the control socket path,
// removing any stale socket file first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

// Dial connects to the control socket of a running daemon.
func Dial() (net.Conn, error) {
	return net.DialTimeout("unix", SocketPath(), dialTimeout)
}
