package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client for OpenAI and OpenAI-compatible servers
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client. An empty key is accepted only
// when a custom BaseURL points at a local compatible server.
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("API key is required")
	}

	transportCfg := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		transportCfg.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(transportCfg),
		config: config,
	}, nil
}

// Generate sends the persona as system message and the input as user message
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.Persona != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Persona})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", &ServiceError{Provider: ProviderOpenAI, Model: modelName, Message: "chat completion failed", Cause: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ServiceError{Provider: ProviderOpenAI, Model: modelName, Message: "no choices in response"}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &ServiceError{Provider: ProviderOpenAI, Model: modelName, Message: "empty response"}
	}
	return text, nil
}

// Close is a no-op; the OpenAI client holds no long-lived connections of its own
func (c *OpenAIClient) Close() error {
	return nil
}
