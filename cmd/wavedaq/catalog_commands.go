package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wavedaq/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionList(limit)
				if err != nil {
					return err
				}
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Sessions))
				for _, sess := range resp.Sessions {
					rows = append(rows, []string{
						sess.ID,
						sess.Label,
						sess.State,
						formatTime(sess.StartedAt),
						strconv.FormatUint(sess.Recorded, 10),
						strconv.FormatUint(sess.Dropped, 10),
						yesNo(sess.Degraded),
					})
				}
				headers := []string{"ID", "Label", "State", "Started", "Recorded", "Dropped", "Degraded"}
				aligns := []bool{false, false, false, false, true, true, false}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list (0 for all)")
	return cmd
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "files <session-id>",
		Short: "List the recording files of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.FileList(args[0])
				if err != nil {
					return err
				}
				if len(resp.Files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no files recorded for this session")
					return nil
				}
				rows := make([][]string, 0, len(resp.Files))
				for _, file := range resp.Files {
					closed := "-"
					if !file.ClosedAt.IsZero() {
						closed = formatTime(file.ClosedAt)
					}
					rows = append(rows, []string{
						strconv.FormatInt(file.ID, 10),
						strconv.Itoa(file.Seq),
						file.Path,
						strconv.FormatInt(file.RowCount, 10),
						closed,
					})
				}
				headers := []string{"ID", "Seq", "Path", "Rows", "Closed"}
				aligns := []bool{true, true, false, true, false}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List serial adapters visible to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DeviceList()
				if err != nil {
					return err
				}
				if len(resp.Devices) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no serial adapters found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Devices))
				for _, dev := range resp.Devices {
					byID := dev.ByID
					if byID == "" {
						byID = "-"
					}
					rows = append(rows, []string{dev.Path, byID})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Path", "Stable Alias"}, rows, nil))
				return nil
			})
		},
	}
}
