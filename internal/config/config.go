// Package config materialises the typed daemon configuration from viper.
// Every knob has a default; malformed values fall back to it with a warning
// instead of failing, so a bad config file never keeps the daemon down.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Defaults for every knob.
const (
	DefaultPollInterval         = time.Second
	DefaultActiveInterval       = 100 * time.Millisecond
	DefaultIdleInterval         = time.Second
	DefaultIdleThreshold        = 30 * time.Second
	DefaultPauseCheckInterval   = time.Second
	DefaultMaxContentSize       = 10 << 20
	DefaultMaxConsecutiveErrors = 10
	DefaultLoopGuardSize        = 10
	DefaultNotifier             = "log"
)

// Config is the daemon configuration.
type Config struct {
	// StateDir holds the pause marker and the history database.
	StateDir string

	PollInterval       time.Duration
	ActiveInterval     time.Duration
	IdleInterval       time.Duration
	IdleThreshold      time.Duration
	PauseCheckInterval time.Duration

	MaxContentSize       int
	MaxConsecutiveErrors int
	LoopGuardSize        int

	HistoryEnabled    bool
	HistoryPassphrase string

	// Notifier is "log" or "none".
	Notifier string

	// Modules maps module name to enabled. Names missing from the map are
	// enabled; only an explicit false disables.
	Modules map[string]bool
}

// DefaultStateDir returns the per-user state directory.
func DefaultStateDir() string {
	if s := os.Getenv("XDG_STATE_HOME"); s != "" {
		return filepath.Join(s, "pastemill")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "pastemill")
	}
	return filepath.Join(os.TempDir(), "pastemill")
}

// SetDefaults registers the default for every config key on v. Call before
// reading the config file so unset keys resolve to these.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("state-dir", DefaultStateDir())
	v.SetDefault("poll-interval", DefaultPollInterval)
	v.SetDefault("active-interval", DefaultActiveInterval)
	v.SetDefault("idle-interval", DefaultIdleInterval)
	v.SetDefault("idle-threshold", DefaultIdleThreshold)
	v.SetDefault("pause-check-interval", DefaultPauseCheckInterval)
	v.SetDefault("max-content-size", DefaultMaxContentSize)
	v.SetDefault("max-consecutive-errors", DefaultMaxConsecutiveErrors)
	v.SetDefault("loop-guard-size", DefaultLoopGuardSize)
	v.SetDefault("history", true)
	v.SetDefault("history-passphrase", "")
	v.SetDefault("notifier", DefaultNotifier)
}

// Load materialises a Config from v.
func Load(v *viper.Viper) Config {
	cfg := Config{
		StateDir:             stringOr(v, "state-dir", DefaultStateDir()),
		PollInterval:         durationOr(v, "poll-interval", DefaultPollInterval),
		ActiveInterval:       durationOr(v, "active-interval", DefaultActiveInterval),
		IdleInterval:         durationOr(v, "idle-interval", DefaultIdleInterval),
		IdleThreshold:        durationOr(v, "idle-threshold", DefaultIdleThreshold),
		PauseCheckInterval:   durationOr(v, "pause-check-interval", DefaultPauseCheckInterval),
		MaxContentSize:       intOr(v, "max-content-size", DefaultMaxContentSize),
		MaxConsecutiveErrors: intOr(v, "max-consecutive-errors", DefaultMaxConsecutiveErrors),
		LoopGuardSize:        intOr(v, "loop-guard-size", DefaultLoopGuardSize),
		HistoryEnabled:       v.GetBool("history") && !v.GetBool("no-history"),
		HistoryPassphrase:    v.GetString("history-passphrase"),
		Notifier:             stringOr(v, "notifier", DefaultNotifier),
		Modules:              moduleMap(v),
	}
	return cfg
}

func durationOr(v *viper.Viper, key string, def time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		if v.IsSet(key) {
			slog.Warn("invalid duration in config, using default",
				"key", key, "value", v.GetString(key), "default", def)
		}
		return def
	}
	return d
}

func intOr(v *viper.Viper, key string, def int) int {
	n := v.GetInt(key)
	if n <= 0 {
		if v.IsSet(key) {
			slog.Warn("invalid number in config, using default",
				"key", key, "value", v.GetString(key), "default", def)
		}
		return def
	}
	return n
}

func stringOr(v *viper.Viper, key, def string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return def
}

// moduleMap reads the [modules] table. Values that are not booleans are
// ignored with a warning.
func moduleMap(v *viper.Viper) map[string]bool {
	raw := v.GetStringMap("modules")
	if len(raw) == 0 {
		return nil
	}
	m := make(map[string]bool, len(raw))
	for name, val := range raw {
		b, ok := val.(bool)
		if !ok {
			slog.Warn("module flag is not a boolean, ignoring", "module", name, "value", val)
			continue
		}
		m[name] = b
	}
	return m
}
