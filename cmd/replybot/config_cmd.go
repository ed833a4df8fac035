package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/replybot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the config file and environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, path, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.File == "" {
			fmt.Fprintf(out, "OK (no file at %s, using defaults)\n", path)
		} else {
			fmt.Fprintf(out, "OK: %s\n", res.File)
		}
		if err := res.Config.RequireCredential(); err != nil {
			fmt.Fprintf(out, "warning: %v\n", err)
		}
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, _, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := res.Config.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configExplainCmd = &cobra.Command{
	Use:   "explain <path>",
	Short: "Show a setting's effective value and where it came from",
	Example: `  replybot config explain cooldown
  replybot config explain injection.input_point.offset_y`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _, err := loadConfig()
		if err != nil {
			return err
		}
		value, src, err := config.Explain(res, args[0])
		if err != nil {
			return err
		}
		return printExplain(cmd.OutOrStdout(), args[0], value, src)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd, configPrintCmd, configExplainCmd)
}

func printExplain(w io.Writer, path string, value any, src config.Source) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s", path, data)
	fmt.Fprintf(w, "source: %s\n", formatSource(src))
	return nil
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.Line > 0 {
			return fmt.Sprintf("%s:%d:%d", src.File, src.Line, src.Column)
		}
		return src.File
	case config.SourceEnv:
		return "env " + src.Name
	default:
		return "default"
	}
}
