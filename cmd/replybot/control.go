package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/replybot/internal/ipc"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running loop's state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := ipc.NewClient().GetStatus()
		if err != nil {
			return err
		}
		if statusJSON {
			return printJSON(cmd.OutOrStdout(), status)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop sending replies until resumed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := ipc.NewClient().Pause(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume sending replies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := ipc.NewClient().Resume(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "resumed")
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read the config file in the running loop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ipc.NewClient().Reload(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reload queued; applies at the next iteration")
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status as JSON")
}

func printStatus(w io.Writer, st *ipc.StatusData) {
	fmt.Fprintf(w, "phase:          %s\n", st.Phase)
	fmt.Fprintf(w, "paused:         %v\n", st.Paused)
	fmt.Fprintf(w, "window:         %s\n", st.WindowTitle)
	fmt.Fprintf(w, "pid:            %d\n", st.PID)
	fmt.Fprintf(w, "uptime:         %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(w, "iterations:     %d\n", st.Iteration)
	fmt.Fprintf(w, "replies:        %d\n", st.Replies)
	fmt.Fprintf(w, "rate:           %d/%d", st.RateCount, st.RateCap)
	if !st.RateResetsAt.IsZero() {
		fmt.Fprintf(w, " (resets %s)", st.RateResetsAt.Local().Format("15:04:05"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ledger_size:    %d\n", st.LedgerSize)
	if st.LastOutcome != "" {
		fmt.Fprintf(w, "last_outcome:   %s\n", st.LastOutcome)
	}
	if st.LastReply != "" {
		fmt.Fprintf(w, "last_reply:     %q at %s\n", st.LastReply, st.LastReplyAt.Local().Format("15:04:05"))
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "last_error:     %s\n", st.LastError)
	}
}
