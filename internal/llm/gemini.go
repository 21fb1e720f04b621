package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Model for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey string, cfg Config) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Ping checks that the evaluation model exists and the key is accepted.
func (c *GeminiClient) Ping(ctx context.Context) error {
	if _, err := c.client.GenerativeModel(c.cfg.EvalModel).Info(ctx); err != nil {
		return fmt.Errorf("model info: %w", err)
	}
	return nil
}

// Generate sends one prompt to the configured Gemini model.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	name, temperature, maxTokens := c.cfg.settings(req.Mode)
	m := c.client.GenerativeModel(name)
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(int32(maxTokens))
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp)
}

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
