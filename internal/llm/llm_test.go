package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves chat completions with a fixed reply and records the
// last request body.
func fakeOpenAI(t *testing.T, reply string) (*OpenAIClient, *map[string]any) {
	t.Helper()
	var last map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last = map[string]any{}
		_ = json.Unmarshal(body, &last)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   last["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"eval","object":"model"}]}`))
	})
	srv := httptest.NewServer(mux)

	c := NewOpenAI(srv.URL+"/v1", "test-key", Config{
		EvalModel:           "eval",
		StrategyModel:       "strategy",
		DeterministicTokens: 1800,
		CreativeTokens:      800,
		CreativeTemperature: 0.5,
	})
	t.Cleanup(func() {
		srv.Close()
		_ = c.Close()
	})
	return c, &last
}

func TestOpenAIDeterministicRequest(t *testing.T) {
	c, last := fakeOpenAI(t, "```json\n{\"ok\": true}\n```")

	out, err := c.Generate(context.Background(), Request{Prompt: "score this", Mode: Deterministic, JSON: true})
	require.NoError(t, err)
	assert.True(t, ParseObject(out).Bool("ok", false))

	req := *last
	assert.Equal(t, "eval", req["model"])
	assert.EqualValues(t, 1800, req["max_tokens"])
	temp, ok := req["temperature"].(float64)
	require.True(t, ok, "temperature must be sent explicitly")
	assert.Less(t, temp, 1e-6)
	format, _ := req["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAICreativeRequest(t *testing.T) {
	c, last := fakeOpenAI(t, "A plain prose answer.")

	out, err := c.Generate(context.Background(), Request{Prompt: "explain", Mode: Creative})
	require.NoError(t, err)
	assert.Equal(t, "A plain prose answer.", out)

	req := *last
	assert.Equal(t, "strategy", req["model"])
	assert.EqualValues(t, 800, req["max_tokens"])
	assert.InDelta(t, 0.5, req["temperature"], 1e-6)
	assert.NotContains(t, req, "response_format")
}

func TestOpenAIEmptyReply(t *testing.T) {
	c, _ := fakeOpenAI(t, "   ")
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIPing(t *testing.T) {
	c, _ := fakeOpenAI(t, "")
	require.NoError(t, c.Ping(context.Background()))
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	c := NewOpenAI(srv.URL+"/v1", "k", DefaultConfig())
	t.Cleanup(func() {
		srv.Close()
		_ = c.Close()
	})

	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestGeminiResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{"nil", nil, "", true},
		{"no candidates", &genai.GenerateContentResponse{}, "", true},
		{"no content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, "", true},
		{"joined parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("{\"a\":"), genai.Text(" 1}")}},
		}}}, "{\"a\": 1}", false},
		{"blank", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}},
		}}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigSettings(t *testing.T) {
	cfg := DefaultConfig()
	name, temp, tokens := cfg.settings(Deterministic)
	assert.Equal(t, cfg.EvalModel, name)
	assert.Zero(t, temp)
	assert.Equal(t, 1800, tokens)

	name, temp, tokens = cfg.settings(Creative)
	assert.Equal(t, cfg.StrategyModel, name)
	assert.InDelta(t, 0.5, temp, 1e-6)
	assert.Equal(t, 800, tokens)
}
