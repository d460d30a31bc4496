package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pastemill/pastemill/internal/ipc"
	"github.com/pastemill/pastemill/internal/message"
	"github.com/pastemill/pastemill/internal/wire"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Displays the running daemon's observation mode, pause state, counters,
module states and history size. The request goes over the local control
socket; the command fails when no daemon is running.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(v *viper.Viper) error {
	st, err := fetchStatus()
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(st)
	return nil
}

// fetchStatus asks the daemon on the control socket to describe itself.
func fetchStatus() (*message.StatusInfo, error) {
	if !ipc.IsRunning() {
		return nil, fmt.Errorf("no daemon on %s (is \"pastemill watch\" running?)", ipc.SocketPath())
	}
	conn, err := ipc.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()

	wc := wire.New(conn)
	if err := wc.WriteMsg(&message.Message{Type: message.TypeStatus}); err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}

	wc.SetReadDeadline(5 * time.Second)
	resp, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("status response: %w", err)
	}
	if resp.Type == message.TypeError {
		return nil, fmt.Errorf("daemon: %s", resp.Error)
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("empty status response")
	}
	return resp.Status, nil
}

func printStatus(st *message.StatusInfo) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", st.Version)
	fmt.Fprintf(w, "Session:\t%s\n", st.Session)
	fmt.Fprintf(w, "PID:\t%d\n", st.PID)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:\t%s (%s)\n", st.StartedAt.UTC().Format(time.RFC3339), fmtAge(st.StartedAt))
	}
	fmt.Fprintf(w, "Backend:\t%s\n", st.Backend)
	fmt.Fprintf(w, "Mode:\t%s\n", st.Mode)
	state := "observing"
	if st.Paused {
		state = "paused"
	}
	fmt.Fprintf(w, "State:\t%s\n", state)
	o := st.Observer
	fmt.Fprintf(w, "Observer:\t%d ticks, %d changes, %d dispatches, %d errors\n",
		o.Ticks, o.Changes, o.Dispatches, o.Errors)
	if st.History != nil {
		fmt.Fprintf(w, "History:\t%d entries (%s)\n", st.History.Entries, st.History.Path)
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	printModuleTable(st.Modules)
}

func printModuleTable(mods []message.ModuleState) {
	if len(mods) == 0 {
		fmt.Println("No modules registered.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "MODULE\tENABLED\tLOADED\n")
	_, _ = fmt.Fprintf(tw, "------\t-------\t------\n")
	for _, m := range mods {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, yesNo(m.Enabled), loadState(m))
	}
	_ = tw.Flush()
}

func loadState(m message.ModuleState) string {
	switch {
	case m.Failed:
		return "failed"
	case m.Loaded:
		return "yes"
	case !m.Enabled:
		return "-"
	default:
		return "not yet"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return fmt.Sprintf("%dh%dm ago", int(age.Hours()), int(age.Minutes())%60)
}
