package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"wavedaq/internal/ipc"
	"wavedaq/internal/session"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <label>",
		Short: "Start an acquisition session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionStart(args[0])
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("start session: %s", resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s started (label %q)\n",
					resp.Session.ID, resp.Session.Label)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active acquisition session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionStop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("stop session: %s", resp.Message)
				}
				st := resp.Session
				if st.ID == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "no session was active")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s %s: %d rows recorded, %d dropped\n",
					st.ID, st.State, st.Recorded, st.Dropped)
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, resp)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, resp *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "daemon:   running (pid %d)\n", resp.PID)
	fmt.Fprintf(out, "config:   %s\n", resp.ConfigPath)
	fmt.Fprintf(out, "catalog:  %s\n", resp.CatalogPath)

	st := resp.Session
	fmt.Fprintf(out, "session:  %s\n", colorState(st.State))
	if st.ID == "" {
		return
	}
	rows := [][]string{
		{"id", st.ID},
		{"label", st.Label},
		{"started", formatTime(st.StartedAt)},
		{"produced", strconv.FormatUint(st.Produced, 10)},
		{"recorded", strconv.FormatUint(st.Recorded, 10)},
		{"dropped", strconv.FormatUint(st.Dropped, 10)},
		{"read errors", strconv.FormatUint(st.ReadErrors, 10)},
		{"degraded", yesNo(st.Degraded)},
	}
	if !st.StoppedAt.IsZero() {
		rows = append(rows, []string{"stopped", formatTime(st.StoppedAt)})
	}
	if st.Error != "" {
		rows = append(rows, []string{"error", st.Error})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
}

func colorState(state session.State) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return string(state)
	}
	switch state {
	case session.StateRunning:
		return text.FgGreen.Sprint(state)
	case session.StateFailed:
		return text.FgRed.Sprint(state)
	case session.StateStopping, session.StateStarting:
		return text.FgYellow.Sprint(state)
	default:
		return string(state)
	}
}

func newDataCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Print the newest live samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Snapshot(limit)
				if err != nil {
					return err
				}
				if len(resp.Samples) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "live buffer is empty")
					return nil
				}
				headers := []string{"Index", "Time"}
				for ch := 1; ch <= len(resp.Samples[0].Values); ch++ {
					headers = append(headers, fmt.Sprintf("Channel %d", ch))
				}
				rows := make([][]string, 0, len(resp.Samples))
				for _, sample := range resp.Samples {
					row := []string{
						strconv.FormatUint(sample.Index, 10),
						sample.Time.Format("15:04:05.000000"),
					}
					for _, v := range sample.Values {
						row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
					}
					rows = append(rows, row)
				}
				aligns := make([]bool, len(headers))
				for i := range aligns {
					aligns[i] = i != 1
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of samples to print (0 for the whole buffer)")
	return cmd
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
