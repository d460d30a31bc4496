package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/config"
	"github.com/pastemill/pastemill/internal/fingerprint"
	"github.com/pastemill/pastemill/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded clipboard history",
		Long: `Reads the history database directly (WAL mode allows a concurrent
reader next to a running daemon). Encrypted entries need the same
history-passphrase the daemon records with.`,
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "Show recent entries, newest first",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runHistoryList(v) },
	}

	f := cmd.Flags()
	f.Int("limit", 20, "number of entries to show")
	f.Bool("json", false, "output raw JSON")
	addStateDirFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete all recorded entries",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runHistoryClear(v) },
	}

	addStateDirFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func openHistory(v *viper.Viper) (*history.Store, error) {
	cfg := config.Load(v)
	return history.Open(filepath.Join(cfg.StateDir, history.DefaultFilename), cfg.HistoryPassphrase)
}

func runHistoryList(v *viper.Viper) error {
	store, err := openHistory(v)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), v.GetInt("limit"))
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("History is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "WHEN\tBYTES\tFINGERPRINT\tCONTENT\n")
	_, _ = fmt.Fprintf(tw, "----\t-----\t-----------\t-------\n")
	for _, e := range entries {
		content := preview(e.Content)
		if e.Encrypted && e.Content == "" {
			content = "[encrypted]"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			fmtAge(e.RecordedAt), e.Bytes, fingerprint.Short(e.Fingerprint), content)
	}
	_ = tw.Flush()
	return nil
}

func runHistoryClear(v *viper.Viper) error {
	store, err := openHistory(v)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	n, err := store.Clear(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d entries.\n", n)
	return nil
}

// preview renders content as a single table-safe line.
func preview(content string) string {
	line := content
	truncated := false
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
		truncated = true
	}
	line = strings.ReplaceAll(line, "\t", " ")
	if runes := []rune(line); len(runes) > 60 {
		line = string(runes[:60])
		truncated = true
	}
	if truncated {
		line += "..."
	}
	return line
}
