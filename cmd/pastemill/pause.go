package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/config"
	"github.com/pastemill/pastemill/internal/pause"
)

func newPauseCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause clipboard observation",
		Long: `Creates the pause marker in the state directory. A running daemon
notices it on the next tick and stops touching the clipboard until
"pastemill resume". The marker can be set before the daemon starts.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return togglePause(v, true) },
	}

	addStateDirFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func newResumeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "resume",
		Short:   "Resume clipboard observation",
		Long:    `Removes the pause marker so a running daemon picks observation back up.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return togglePause(v, false) },
	}

	addStateDirFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func togglePause(v *viper.Viper, pausing bool) error {
	cfg := config.Load(v)
	gate := pause.NewGate(filepath.Join(cfg.StateDir, pause.MarkerName))
	was := gate.Paused()

	if pausing {
		if err := gate.Pause(); err != nil {
			return err
		}
		if was {
			fmt.Println("Observation was already paused.")
		} else {
			fmt.Println("Observation paused.")
		}
		return nil
	}

	if err := gate.Resume(); err != nil {
		return err
	}
	if was {
		fmt.Println("Observation resumed.")
	} else {
		fmt.Println("Observation was not paused.")
	}
	return nil
}
