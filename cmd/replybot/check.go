package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/oracle"
	"github.com/1broseidon/replybot/internal/platform"
)

var (
	checkPing        bool
	checkPingTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Preflight: credential, display, target window and optionally the model",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkPing, "ping", false, "send a one-line text request to the model")
	checkCmd.Flags().DurationVar(&checkPingTimeout, "ping-timeout", 30*time.Second, "timeout for --ping")
}

var errCheckFailed = errors.New("one or more checks failed")

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	res, path, err := loadConfig()
	if err != nil {
		report(out, false, "config", err.Error())
		return errCheckFailed
	}
	cfg := res.Config
	if res.File == "" {
		report(out, true, "config", "defaults (no file at "+path+")")
	} else {
		report(out, true, "config", res.File)
	}

	failed := false
	if err := cfg.RequireCredential(); err != nil {
		report(out, false, "credential", err.Error())
		failed = true
	} else {
		report(out, true, "credential", cfg.MaskedAPIKey())
	}

	if !checkDisplay(out, cfg) {
		failed = true
	}

	if checkPing && !failed {
		if !checkOracle(cmd.Context(), out, cfg) {
			failed = true
		}
	}

	if failed {
		return errCheckFailed
	}
	return nil
}

func checkDisplay(out io.Writer, cfg *config.Config) bool {
	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		report(out, false, "display", err.Error())
		return false
	}
	defer backend.Disconnect()

	displays, err := backend.Displays()
	if err != nil {
		report(out, false, "display", err.Error())
		return false
	}
	for _, d := range displays {
		report(out, true, "display", fmt.Sprintf("%s %dx%d+%d+%d", d.Name, d.Bounds.Width, d.Bounds.Height, d.Bounds.X, d.Bounds.Y))
	}

	win, err := backend.FindWindow(cfg.WindowTitle)
	if err != nil {
		report(out, false, "window", fmt.Sprintf("%q: %v", cfg.WindowTitle, err))
		return false
	}
	report(out, true, "window", windowDetail(win, displays))
	return true
}

// windowDetail describes win and the display its centre sits on.
func windowDetail(win platform.Window, displays []platform.Display) string {
	detail := fmt.Sprintf("%q %dx%d at %d,%d", win.Title, win.Bounds.Width, win.Bounds.Height, win.Bounds.X, win.Bounds.Y)
	if d, ok := platform.DisplayForRect(displays, win.Bounds); ok {
		return detail + " on " + d.Name
	}
	return detail + " (off-screen)"
}

func checkOracle(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	ctx, cancel := context.WithTimeout(ctx, checkPingTimeout)
	defer cancel()

	gemini, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		report(out, false, "model", err.Error())
		return false
	}
	start := time.Now()
	answer, err := gemini.Ping(ctx)
	if err != nil {
		report(out, false, "model", err.Error())
		return false
	}
	report(out, true, "model", fmt.Sprintf("%s answered %q in %s", cfg.Model, answer, time.Since(start).Round(time.Millisecond)))
	return true
}

func report(w io.Writer, ok bool, name, detail string) {
	mark := "ok  "
	if !ok {
		mark = "FAIL"
	}
	fmt.Fprintf(w, "[%s] %-10s %s\n", mark, name, detail)
}
