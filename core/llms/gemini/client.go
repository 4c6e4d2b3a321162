package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-rehearse/core/llms"
	"google.golang.org/genai"
)

type Client struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewClient(ctx context.Context, apiKey, model string, opts ...llms.ClientOption) (*Client, error) {
	options := llms.NewClientOptions(opts...)

	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.HTTPClient,
	}
	if options.BaseURL != "" {
		config.HTTPOptions.BaseURL = options.BaseURL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{client: client, model: model, maxTokens: int32(options.MaxTokens)}, nil
}

func convertMessages(messages []llms.Message) (*genai.Content, []*genai.Content) {
	var systemParts []*genai.Part
	var contents []*genai.Content

	for _, m := range llms.LeadingAssistantAsSystem(messages) {
		switch m.Role {
		case llms.MessageRoleSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case llms.MessageRoleUser:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		case llms.MessageRoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: systemParts}, contents
}

func (c *Client) Complete(ctx context.Context, messages []llms.Message) (string, error) {
	if !llms.HasUserMessage(messages) {
		return "", fmt.Errorf("gemini: no user message provided")
	}

	systemInstruction, contents := convertMessages(messages)
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		MaxOutputTokens:   c.maxTokens,
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return text, nil
}
