// Package llm talks to generative-model backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Mode selects the sampling profile of a request.
type Mode int

const (
	// Deterministic is used for the evaluation passes.
	Deterministic Mode = iota
	// Creative is used for strategy and ideal-answer generation.
	Creative
)

func (m Mode) String() string {
	if m == Creative {
		return "creative"
	}
	return "deterministic"
}

// Request is a single prompt sent to a model.
type Request struct {
	Prompt string
	Mode   Mode
	// JSON asks the backend to constrain output to a JSON object.
	JSON bool
}

// Model generates text from a prompt.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Config names the models and sampling settings used for each Mode.
type Config struct {
	EvalModel           string
	StrategyModel       string
	DeterministicTokens int
	CreativeTokens      int
	CreativeTemperature float32
}

// DefaultConfig returns the model settings used when none are given.
func DefaultConfig() Config {
	return Config{
		EvalModel:           "gemini-2.5-pro-preview-06-05",
		StrategyModel:       "gemini-1.5-pro",
		DeterministicTokens: 1800,
		CreativeTokens:      800,
		CreativeTemperature: 0.5,
	}
}

func (c Config) settings(m Mode) (name string, temperature float32, maxTokens int) {
	if m == Creative {
		return c.StrategyModel, c.CreativeTemperature, c.CreativeTokens
	}
	return c.EvalModel, 0, c.DeterministicTokens
}

// OpenAIClient wraps an OpenAI-compatible API client.
type OpenAIClient struct {
	api  *openai.Client
	http *http.Client
	cfg  Config
}

// NewOpenAI creates a client for an OpenAI-compatible endpoint.
func NewOpenAI(baseURL, apiKey string, cfg Config) *OpenAIClient {
	hc := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone())}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = hc
	return &OpenAIClient{
		api:  openai.NewClientWithConfig(config),
		http: hc,
		cfg:  cfg,
	}
}

// Ping checks that the endpoint is reachable by listing models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Generate sends one chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	name, temperature, maxTokens := c.cfg.settings(req.Mode)
	if temperature == 0 {
		// A zero temperature is dropped by omitempty.
		temperature = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model: name,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM response", "model", name, "mode", req.Mode.String(), "raw", raw)
	if raw == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

// Close releases idle HTTP connections.
func (c *OpenAIClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
