package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/config"
	"github.com/pastemill/pastemill/internal/ipc"
	"github.com/pastemill/pastemill/internal/modules"
	"github.com/pastemill/pastemill/internal/registry"
)

func newModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List and toggle content modules",
	}
	cmd.AddCommand(
		newModulesListCmd(),
		newModulesToggleCmd("enable", true),
		newModulesToggleCmd("disable", false),
	)
	return cmd
}

func newModulesListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show modules and their enablement",
		Long: `Lists the built-in modules in dispatch order. With a running daemon the
live load state is shown; otherwise the effective config is displayed.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runModulesList(v) },
	}

	addConfigFlag(cmd)
	return cmd
}

func runModulesList(v *viper.Viper) error {
	// Prefer the daemon's live view when one is running.
	if ipc.IsRunning() {
		if st, err := fetchStatus(); err == nil {
			printModuleTable(st.Modules)
			return nil
		}
	}

	cfg := config.Load(v)
	reg := registry.Discover(modules.Builtins(), cfg.Modules)

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "MODULE\tENABLED\n")
	_, _ = fmt.Fprintf(tw, "------\t-------\n")
	for _, s := range reg.States() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.Name, yesNo(s.Enabled))
	}
	_ = tw.Flush()
	fmt.Println("\nNo daemon running; showing configured state.")
	return nil
}

func newModulesToggleCmd(verb string, enabled bool) *cobra.Command {
	short := "Enable a module"
	if !enabled {
		short = "Disable a module"
	}
	cmd := &cobra.Command{
		Use:   verb + " NAME",
		Short: short + " (takes effect on daemon restart)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setModuleEnabled(cmd, args[0], enabled)
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func setModuleEnabled(cmd *cobra.Command, name string, enabled bool) error {
	known := false
	for _, b := range modules.Builtins() {
		if b.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown module %q (known: %s)", name, strings.Join(moduleNames(), ", "))
	}

	// No defaults here: writing the file back would freeze every default.
	v := viper.New()
	if err := readConfigInto(cmd, v); err != nil {
		return err
	}

	v.Set("modules."+name, enabled)

	path := v.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("no config file found and no home directory: %w", err)
		}
		dir := filepath.Join(home, ".config", "pastemill")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		path = filepath.Join(dir, "pastemill.toml")
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	fmt.Printf("Module %s %s in %s. Restart the daemon to apply.\n", name, verb, path)
	return nil
}

func moduleNames() []string {
	var names []string
	for _, b := range modules.Builtins() {
		names = append(names, b.Name)
	}
	return names
}
