package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowClient struct {
	delay time.Duration
	text  string
}

func (s *slowClient) Generate(ctx context.Context, req Request) (string, error) {
	select {
	case <-time.After(s.delay):
		return s.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *slowClient) Close() error { return nil }

func TestTimeoutClient_BoundsCall(t *testing.T) {
	client := WithTimeout(&slowClient{delay: time.Second, text: "late"}, 20*time.Millisecond)

	_, err := client.Generate(context.Background(), Request{Input: "x"})
	require.Error(t, err)

	var svcErr *ServiceError
	assert.True(t, errors.As(err, &svcErr))
}

func TestTimeoutClient_IgnoresCallerCancellation(t *testing.T) {
	client := WithTimeout(&slowClient{delay: 20 * time.Millisecond, text: "done"}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	text, err := client.Generate(ctx, Request{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  summary text  "}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	cfg := DefaultOpenAIConfig().WithSingleModel("test-model")
	cfg.BaseURL = server.URL
	client, err := NewOpenAIClient(cfg, "test-key")
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), Request{
		Persona:   "You summarize.",
		Input:     "content",
		MaxTokens: 600,
		Tier:      TierStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, "summary text", text)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 600, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer server.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = server.URL
	client, err := NewOpenAIClient(cfg, "test-key")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Input: "content", Tier: TierLite})
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ProviderOpenAI, svcErr.Provider)
	assert.Equal(t, "gpt-4o-mini", svcErr.Model)
}

func TestNewOpenAIClient_RequiresKeyWithoutBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(DefaultOpenAIConfig(), "")
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultGeminiConfig(), "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
