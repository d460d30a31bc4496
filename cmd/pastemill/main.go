// pastemill: clipboard observer with pluggable content modules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pastemill/pastemill/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "pastemill",
		Short: "Clipboard observer with pluggable content modules",
		Long: `pastemill watches the system clipboard and runs every copy through a
chain of content modules: Markdown becomes RTF, HTML becomes Markdown,
diagram markup raises a notification. Replacements are written straight
back to the clipboard; a fingerprint guard keeps the daemon from chasing
its own writes.

Run "pastemill watch" to start the daemon. Use "pastemill status",
"pause"/"resume", "modules" and "history" to inspect and steer it.

Config file search order (first found wins):
  /etc/pastemill/pastemill.toml
  $HOME/.config/pastemill/pastemill.toml
  path supplied via --config

All flags can be set via PASTEMILL_<FLAG> env vars or config-file keys.
See "pastemill watch --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newWatchCmd(),
		newStatusCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newModulesCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("pastemill %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
