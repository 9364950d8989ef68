package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultModel     = "gemini-3-flash-preview"
	DefaultMaxTokens = 200
)

// GeminiConfig wires Gemini API access.
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
}

type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int
}

var _ Generator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model, maxTokens: maxTokens}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			MaxOutputTokens:   int32(g.maxTokens),
		})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// NewFromAPIKey returns a Service that reports a missing key when apiKey is
// empty or the client cannot be built.
func NewFromAPIKey(ctx context.Context, apiKey, model string) *Service {
	if strings.TrimSpace(apiKey) == "" {
		return NewService(nil)
	}
	gen, err := NewGeminiGenerator(ctx, GeminiConfig{APIKey: apiKey, Model: model})
	if err != nil {
		return NewService(nil)
	}
	return NewService(gen)
}
