package oracle

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/replybot/internal/frame"
)

func geminiServer(t *testing.T, text string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": text}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFrame() *frame.Frame {
	return frame.New(image.NewRGBA(image.Rect(0, 0, 4, 4)), time.Now())
}

func TestGemini_Analyze(t *testing.T) {
	var seen map[string]any
	srv := geminiServer(t, "```json\n{\"should_reply\": true, \"message_detected\": \"good morning\", \"reply\": \"morning! ☕\"}\n```", &seen)

	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:      "test-key",
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		Prompt:      "prompt text",
		BaseURL:     srv.URL + "/",
	})
	require.NoError(t, err)

	d, err := g.Analyze(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Equal(t, Decision{ShouldReply: true, MessageDetected: "good morning", Reply: "morning! ☕"}, d)

	// The request carries the prompt and an inline PNG.
	raw, err := json.Marshal(seen)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "prompt text")
	assert.Contains(t, string(raw), "image/png")
}

func TestGemini_AnalyzeMalformed(t *testing.T) {
	srv := geminiServer(t, "Sure! I'd reply with a joke.", nil)
	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	d, err := g.Analyze(context.Background(), testFrame())
	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "Sure! I'd reply with a joke.", merr.Raw)
	assert.False(t, d.ShouldReply)
}

func TestGemini_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"boom","status":"INVALID_ARGUMENT"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	d, err := g.Analyze(context.Background(), testFrame())
	require.Error(t, err)
	assert.False(t, d.ShouldReply)
}

func TestNewGemini_RequiresKeyAndModel(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewGemini(context.Background(), GeminiConfig{APIKey: "k"})
	assert.Error(t, err)
}
