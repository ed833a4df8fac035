package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/ipc"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.control.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("get_status: %w", err)
	}
	return nil, statusOutput(status), nil
}

func (s *Server) handlePause(_ context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.control.Pause()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("pause_replies: %w", err)
	}
	s.logger.Info("replies paused via MCP")
	return nil, statusOutput(status), nil
}

func (s *Server) handleResume(_ context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.control.Resume()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("resume_replies: %w", err)
	}
	s.logger.Info("replies resumed via MCP")
	return nil, statusOutput(status), nil
}

func (s *Server) handleReload(_ context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, ReloadOutput, error) {
	if err := s.control.Reload(); err != nil {
		s.logger.Warn("reload via MCP failed", zap.Error(err))
		return nil, ReloadOutput{}, fmt.Errorf("reload_config: %w", err)
	}
	return nil, ReloadOutput{Reloaded: true}, nil
}

func statusOutput(st *ipc.StatusData) StatusOutput {
	return StatusOutput{
		Phase:         string(st.Phase),
		Paused:        st.Paused,
		WindowTitle:   st.WindowTitle,
		PID:           st.PID,
		StartedAt:     formatTime(st.StartedAt),
		UptimeSeconds: st.UptimeSeconds,
		Iteration:     st.Iteration,
		Replies:       st.Replies,
		LedgerSize:    st.LedgerSize,
		RateCount:     st.RateCount,
		RateCap:       st.RateCap,
		RateResetsAt:  formatTime(st.RateResetsAt),
		LastOutcome:   string(st.LastOutcome),
		LastDetected:  st.LastDetected,
		LastReply:     st.LastReply,
		LastReplyAt:   formatTime(st.LastReplyAt),
		LastError:     st.LastError,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
