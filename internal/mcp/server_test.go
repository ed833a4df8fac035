package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/replybot/internal/ipc"
	"github.com/1broseidon/replybot/internal/loop"
)

type fakeControl struct {
	mu        sync.Mutex
	status    ipc.StatusData
	reloadErr error
	reloads   int
}

func (f *fakeControl) GetStatus() (*ipc.StatusData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.status
	return &st, nil
}

func (f *fakeControl) Pause() (*ipc.StatusData, error) {
	f.mu.Lock()
	f.status.Paused = true
	f.mu.Unlock()
	return f.GetStatus()
}

func (f *fakeControl) Resume() (*ipc.StatusData, error) {
	f.mu.Lock()
	f.status.Paused = false
	f.mu.Unlock()
	return f.GetStatus()
}

func (f *fakeControl) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func connect(t *testing.T, control Control) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv := NewServer(control, nil)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := srv.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string) *mcpsdk.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatalf("result has no content")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want *TextContent", res.Content[0])
	}
	return text.Text
}

func decodeStatus(t *testing.T, res *mcpsdk.CallToolResult) StatusOutput {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var out StatusOutput
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return out
}

func TestListTools(t *testing.T) {
	session := connect(t, &fakeControl{})
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"get_status", "pause_replies", "resume_replies", "reload_config"} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestGetStatus(t *testing.T) {
	resets := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	control := &fakeControl{status: ipc.StatusData{
		Snapshot: loop.Snapshot{
			Phase:        loop.PhaseSleeping,
			WindowTitle:  "WhatsApp",
			Replies:      3,
			RateCount:    3,
			RateCap:      10,
			RateResetsAt: resets,
			LastOutcome:  loop.OutcomeReplied,
			LastReply:    "On my way",
		},
		PID:           42,
		UptimeSeconds: 90,
	}}
	session := connect(t, control)

	out := decodeStatus(t, callTool(t, session, "get_status"))
	if out.Phase != "sleeping" || out.WindowTitle != "WhatsApp" || out.PID != 42 {
		t.Fatalf("unexpected status: %+v", out)
	}
	if out.Replies != 3 || out.RateCap != 10 || out.LastOutcome != "replied" {
		t.Fatalf("unexpected counters: %+v", out)
	}
	if out.RateResetsAt != "2024-05-01T11:00:00Z" {
		t.Fatalf("rate_resets_at = %q", out.RateResetsAt)
	}
	if out.LastReplyAt != "" {
		t.Fatalf("zero time should be empty, got %q", out.LastReplyAt)
	}
}

func TestPauseAndResume(t *testing.T) {
	session := connect(t, &fakeControl{})

	if out := decodeStatus(t, callTool(t, session, "pause_replies")); !out.Paused {
		t.Fatalf("expected paused after pause_replies")
	}
	if out := decodeStatus(t, callTool(t, session, "resume_replies")); out.Paused {
		t.Fatalf("expected running after resume_replies")
	}
}

func TestReloadConfig(t *testing.T) {
	control := &fakeControl{}
	session := connect(t, control)

	res := callTool(t, session, "reload_config")
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if control.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", control.reloads)
	}
}

func TestReloadConfigErrorIsToolError(t *testing.T) {
	control := &fakeControl{reloadErr: errors.New("rate_limit: must be positive")}
	session := connect(t, control)

	res := callTool(t, session, "reload_config")
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
	if text := resultText(t, res); !strings.Contains(text, "rate_limit") {
		t.Fatalf("error text %q does not carry cause", text)
	}
}
