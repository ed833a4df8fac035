package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "replybot",
	Short: "Answer chat messages on screen with a vision model",
	Long: `replybot watches a desktop chat window, asks a vision model whether the
latest message deserves a reply, and types the reply into the window.

Start the loop with "replybot run". While it runs, "status", "pause",
"resume" and "reload" talk to it over a unix socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/replybot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log_format (console, json)")

	rootCmd.AddCommand(runCmd, checkCmd, configCmd, mcpCmd)
	rootCmd.AddCommand(statusCmd, pauseCmd, resumeCmd, reloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.LoadResult, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	return res, path, nil
}

// newLogger builds the process logger from cfg, honouring the flag overrides.
// cfg may be nil when no config could be loaded.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logging.Options{Level: "info", Format: "console"}
	if cfg != nil {
		opts.Level = cfg.LogLevel
		opts.Format = cfg.LogFormat
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFormat != "" {
		opts.Format = logFormat
	}
	return logging.New(opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
