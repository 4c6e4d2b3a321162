package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/koscakluka/ema-rehearse/core/llms"
)

type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewClient(apiKey, model string, opts ...llms.ClientOption) *Client {
	options := llms.NewClientOptions(opts...)

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(options.HTTPClient),
	}
	if options.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.BaseURL))
	}

	return &Client{
		client:    anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: options.MaxTokens,
	}
}

func (c *Client) Complete(ctx context.Context, messages []llms.Message) (string, error) {
	var systemBlocks []anthropic.TextBlockParam
	var chatMessages []anthropic.MessageParam

	for _, m := range llms.LeadingAssistantAsSystem(messages) {
		switch m.Role {
		case llms.MessageRoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: m.Content})
		case llms.MessageRoleUser:
			chatMessages = append(chatMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case llms.MessageRoleAssistant:
			chatMessages = append(chatMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    systemBlocks,
		Messages:  chatMessages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", fmt.Errorf("anthropic: empty response content")
	}
	return result, nil
}
