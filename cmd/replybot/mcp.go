package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/replybot/internal/ipc"
	"github.com/1broseidon/replybot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve status and pause controls as MCP tools over stdio",
	Long: `Starts an MCP server on stdin/stdout exposing get_status, pause_replies,
resume_replies and reload_config. Tool calls are forwarded to the running
"replybot run" process over its IPC socket.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol; logs go to stderr.
		logger, err := newLogger(nil)
		if err != nil {
			return err
		}
		defer logger.Sync()

		srv := mcp.NewServer(ipc.NewClient(), logger.Named("mcp"))
		return srv.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}
