package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-rehearse/core/llms"
	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewClient(apiKey, model string, opts ...llms.ClientOption) *Client {
	options := llms.NewClientOptions(opts...)

	config := openai.DefaultConfig(apiKey)
	if options.BaseURL != "" {
		config.BaseURL = options.BaseURL
	}
	config.HTTPClient = options.HTTPClient

	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: int(options.MaxTokens),
	}
}

func (c *Client) Complete(ctx context.Context, messages []llms.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
