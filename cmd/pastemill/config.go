package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/config"
	"github.com/pastemill/pastemill/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and PASTEMILL_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → PASTEMILL_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)

	if err := readConfigInto(cmd, v); err != nil {
		return err
	}

	v.SetEnvPrefix("PASTEMILL")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// readConfigInto points v at the config file (--config flag or the search
// paths) and reads it when present. It registers no defaults, so commands
// that rewrite the file use it directly and defaults stay out of the file.
func readConfigInto(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("pastemill")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/pastemill/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/pastemill", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for daemon, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addStateDirFlag adds the --state-dir flag shared by every command that
// touches the pause marker or the history database.
func addStateDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("state-dir", config.DefaultStateDir(), "directory for the pause marker and history database")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}
