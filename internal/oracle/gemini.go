package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/1broseidon/replybot/internal/frame"
)

// GeminiConfig configures the Gemini-backed oracle.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Prompt      string
	// BaseURL overrides the API endpoint; empty means the public Gemini API.
	BaseURL string
}

// Gemini sends each frame to a Gemini vision model.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	prompt      string
}

var _ Oracle = (*Gemini)(nil)

// NewGemini creates a Gemini client. It does not contact the API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		prompt:      cfg.Prompt,
	}, nil
}

// Analyze sends the prompt and the frame as a PNG and parses the answer.
func (g *Gemini) Analyze(ctx context.Context, f *frame.Frame) (Decision, error) {
	png, err := f.PNG()
	if err != nil {
		return Decision{}, err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(g.prompt),
			genai.NewPartFromBytes(png, "image/png"),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Decision{}, fmt.Errorf("gemini generate failed: %w", err)
	}
	return ParseDecision(resp.Text())
}

// Ping makes a minimal text-only request to confirm the key and model work.
func (g *Gemini) Ping(ctx context.Context) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text("Reply with the single word: ok"), nil)
	if err != nil {
		return "", fmt.Errorf("gemini ping failed: %w", err)
	}
	return resp.Text(), nil
}
