package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/clip"
	"github.com/pastemill/pastemill/internal/config"
	"github.com/pastemill/pastemill/internal/dispatch"
	"github.com/pastemill/pastemill/internal/history"
	"github.com/pastemill/pastemill/internal/ipc"
	"github.com/pastemill/pastemill/internal/loopguard"
	"github.com/pastemill/pastemill/internal/message"
	"github.com/pastemill/pastemill/internal/modules"
	"github.com/pastemill/pastemill/internal/notify"
	"github.com/pastemill/pastemill/internal/observer"
	"github.com/pastemill/pastemill/internal/pause"
	"github.com/pastemill/pastemill/internal/registry"
	"github.com/pastemill/pastemill/internal/wire"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the clipboard observer daemon",
		Long: `Starts the pastemill daemon. Every clipboard change is fingerprinted,
checked against the loop guard and handed to the enabled modules in order:
markdown, html, diagram. Module replacements are written back to the
clipboard; originals go to the history database.

Config file search order:
  /etc/pastemill/pastemill.toml
  $HOME/.config/pastemill/pastemill.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → PASTEMILL_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runWatch(v) },
	}

	f := cmd.Flags()
	f.Duration("poll-interval", config.DefaultPollInterval, "content comparison interval in polling mode")
	f.Bool("no-history", false, "disable the history database")
	f.String("notifier", config.DefaultNotifier, "notification sink: log|none")
	addStateDirFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// daemon bundles everything the IPC status handler needs to describe the
// running process.
type daemon struct {
	session   string
	startedAt time.Time
	backend   clip.Backend
	obs       *observer.Observer
	gate      *pause.Gate
	reg       *registry.Registry
	store     *history.Store
	storePath string
}

func runWatch(v *viper.Viper) error {
	setupLogging(v)
	cfg := config.Load(v)

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	backend := clip.New()
	defer backend.Close()

	gate := pause.NewGate(filepath.Join(cfg.StateDir, pause.MarkerName))

	var store *history.Store
	storePath := filepath.Join(cfg.StateDir, history.DefaultFilename)
	if cfg.HistoryEnabled {
		var err error
		store, err = history.Open(storePath, cfg.HistoryPassphrase)
		if err != nil {
			// History is a collaborator; its failure never stops observation.
			slog.Warn("history store unavailable", "path", storePath, "err", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	var notifier notify.Notifier
	if cfg.Notifier == "none" {
		notifier = notify.Nop{}
	} else {
		notifier = notify.NewGuarded(notify.Log{}, notify.DefaultTimeout)
	}

	reg := registry.Discover(modules.Builtins(), cfg.Modules)

	opts := dispatch.Options{
		MaxContentSize: cfg.MaxContentSize,
		Notifier:       notifier,
	}
	if store != nil {
		opts.History = store
	}
	disp := dispatch.New(backend, loopguard.New(cfg.LoopGuardSize), reg, opts)

	obs := observer.New(backend, disp, gate, observer.Config{
		ActiveInterval:       cfg.ActiveInterval,
		IdleInterval:         cfg.IdleInterval,
		IdleThreshold:        cfg.IdleThreshold,
		PollInterval:         cfg.PollInterval,
		PauseCheckInterval:   cfg.PauseCheckInterval,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	})

	d := &daemon{
		session:   uuid.NewString(),
		startedAt: time.Now(),
		backend:   backend,
		obs:       obs,
		gate:      gate,
		reg:       reg,
		store:     store,
		storePath: storePath,
	}

	slog.Info("pastemill starting",
		"version", Version,
		"session", d.session,
		"backend", backend.Name(),
		"mode", obs.Mode(),
		"state_dir", cfg.StateDir,
		"history", store != nil,
	)

	// Control socket for the status CLI.
	ipcLn, err := ipc.Listen()
	if err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		defer ipcLn.Close()
		slog.Info("control socket listening", "path", ipc.SocketPath())
		go serveIPC(ipcLn, d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	return obs.Run(ctx)
}

func serveIPC(ln net.Listener, d *daemon) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handleIPCConn(conn, d)
	}
}

func handleIPCConn(conn net.Conn, d *daemon) {
	defer conn.Close()
	wc := wire.New(conn)

	msg, err := wc.ReadMsg()
	if err != nil {
		return
	}

	switch msg.Type {
	case message.TypeStatus:
		_ = wc.WriteMsg(&message.Message{
			Type:   message.TypeStatusResponse,
			Status: d.statusInfo(),
		})
	default:
		_ = wc.WriteMsg(&message.Message{
			Type:  message.TypeError,
			Error: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

func (d *daemon) statusInfo() *message.StatusInfo {
	stats := d.obs.Stats()
	info := &message.StatusInfo{
		Version:   Version,
		Session:   d.session,
		PID:       os.Getpid(),
		StartedAt: d.startedAt,
		Backend:   d.backend.Name(),
		Mode:      string(d.obs.Mode()),
		Paused:    d.gate.Paused(),
		Observer: message.ObserverStats{
			Ticks:       stats.Ticks,
			Changes:     stats.Changes,
			Dispatches:  stats.Dispatches,
			Errors:      stats.Errors,
			PausedTicks: stats.PausedTicks,
		},
	}

	for _, s := range d.reg.States() {
		info.Modules = append(info.Modules, message.ModuleState{
			Name:    s.Name,
			Enabled: s.Enabled,
			Loaded:  s.Loaded,
			Failed:  s.Failed,
		})
	}

	if d.store != nil {
		n, err := d.store.Count(context.Background())
		if err != nil {
			slog.Warn("history count failed", "err", err)
		}
		info.History = &message.HistoryInfo{Entries: n, Path: d.storePath}
	}
	return info
}
