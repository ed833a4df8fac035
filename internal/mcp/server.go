package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/ipc"
)

const (
	ServerName    = "replybot"
	ServerVersion = "0.1.0"
)

// Control is the running loop as reached over IPC.
type Control interface {
	GetStatus() (*ipc.StatusData, error)
	Pause() (*ipc.StatusData, error)
	Resume() (*ipc.StatusData, error)
	Reload() error
}

// Server exposes the reply loop's control surface as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	control   Control
	logger    *zap.Logger
}

// NewServer creates an MCP server that forwards tool calls to control.
func NewServer(control Control, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		control: control,
		logger:  logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the auto-reply loop's current phase, pause state, reply counters, rate window and the most recent outcome.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pause_replies",
		Description: "Pause the auto-reply loop. Iterations keep ticking but no screenshots are analyzed and nothing is typed until resumed.",
	}, s.handlePause)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resume_replies",
		Description: "Resume a paused auto-reply loop.",
	}, s.handleResume)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reload_config",
		Description: "Re-read the config file and apply it at the start of the next iteration. Fails without changing anything if the file is invalid.",
	}, s.handleReload)
}
