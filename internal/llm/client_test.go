package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
	}
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("def f():\n    pass"))
	}))
	defer server.Close()

	client := NewClient(Options{
		BaseURL:     server.URL + "/v1",
		APIKey:      "sk-test",
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   256,
	}, logger.Nop())

	text, usage, err := client.Generate(context.Background(), "system role", "user prompt")
	require.NoError(t, err)

	assert.Equal(t, "def f():\n    pass", text)
	assert.Equal(t, Usage{Prompt: 12, Completion: 8, Total: 20}, usage)
	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system role", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestGenerate_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1", Model: "test-model", Temperature: 0}, logger.Nop())

	_, _, err := client.Generate(context.Background(), "s", "u")
	require.NoError(t, err)

	raw, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request")
	var temperature float64
	require.NoError(t, json.Unmarshal(raw, &temperature))
	assert.Greater(t, temperature, 0.0)
	assert.Less(t, temperature, 1e-6)
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1", Retries: 3, Backoff: time.Millisecond}, logger.Nop())

	text, _, err := client.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerate_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1", Retries: 5, Backoff: time.Millisecond}, logger.Nop())

	_, _, err := client.Generate(context.Background(), "s", "u")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":0,"total_tokens":3}}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1"}, logger.Nop())

	_, usage, err := client.Generate(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 3, usage.Total)
}

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, Options{}.BaseURLFor())
	assert.Equal(t, "http://localhost:8080/v1", Options{Mode: ModeLocal, Port: 8080}.BaseURLFor())
	assert.Equal(t, "https://example.test/v1", Options{Mode: ModeLocal, BaseURL: "https://example.test/v1"}.BaseURLFor())
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{Prompt: 1, Completion: 2, Total: 3})
	total.Add(Usage{Prompt: 4, Completion: 5, Total: 9})
	assert.Equal(t, Usage{Prompt: 5, Completion: 7, Total: 12}, total)
}
