package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Request is one stateless generation call.
type Request struct {
	Persona     string    // system instruction
	Input       string    // user content, already truncated by the caller
	MaxTokens   int       // output budget; 0 leaves the provider default
	Temperature float32   // sampling temperature
	Tier        ModelTier // selects the model
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate returns the model's text for a single persona + input call
	Generate(ctx context.Context, req Request) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate runs one call with the persona as system instruction
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Persona != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Persona)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Input))
	if err != nil {
		return "", &ServiceError{Provider: ProviderGemini, Model: modelName, Message: "failed to generate content", Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &ServiceError{Provider: ProviderGemini, Model: modelName, Message: "unusable response", Cause: err}
	}
	return text, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	joined := strings.TrimSpace(strings.Join(parts, ""))
	if joined == "" {
		return "", fmt.Errorf("no text parts in response")
	}
	return joined, nil
}

// TimeoutClient bounds every call of the wrapped client. The call context is
// detached from the caller's cancellation so an in-flight request finishes or
// times out on its own; callers stop between calls, not during one.
type TimeoutClient struct {
	Client
	Timeout time.Duration
}

// WithTimeout wraps client so that each Generate call is bounded by d.
func WithTimeout(client Client, d time.Duration) *TimeoutClient {
	return &TimeoutClient{Client: client, Timeout: d}
}

// Generate delegates to the wrapped client under the configured deadline.
func (c *TimeoutClient) Generate(ctx context.Context, req Request) (string, error) {
	callCtx := context.WithoutCancel(ctx)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.Timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.Client.Generate(callCtx, req)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-callCtx.Done():
		return "", &ServiceError{Message: "generation timed out", Cause: callCtx.Err()}
	}
}
