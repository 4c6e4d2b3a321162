package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-rehearse/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL = "https://api.groq.com/openai/v1/chat/completions"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Client talks to the Groq chat completions endpoint and streams the reply.
type Client struct {
	apiKey  string
	model   string
	url     string
	options llms.ClientOptions
}

func NewClient(apiKey, model string, opts ...llms.ClientOption) *Client {
	options := llms.NewClientOptions(opts...)

	url := defaultURL
	if options.BaseURL != "" {
		url = strings.TrimSuffix(options.BaseURL, "/") + "/chat/completions"
	}

	return &Client{apiKey: apiKey, model: model, url: url, options: options}
}

func (c *Client) Complete(ctx context.Context, messages []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "groq complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	)

	reqBody := requestBody{
		Model:     c.model,
		Messages:  toMessages(messages),
		Stream:    true,
		MaxTokens: c.options.MaxTokens,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.options.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("error closing response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("groq: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return "", err
	}

	response, err := readStream(resp.Body)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// readStream joins the content deltas of a server-sent event stream.
func readStream(body io.Reader) (string, error) {
	var response strings.Builder
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

		if len(chunk) == 0 {
			continue
		}
		if chunk == endMessage {
			break
		}

		var responseBody streamingResponseBody
		if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
			logger.Debug("error unmarshalling chunk", "error", err)
			continue
		}
		if responseBody.Error != nil {
			return "", fmt.Errorf("groq: %s", responseBody.Error.Message)
		}
		if len(responseBody.Choices) == 0 {
			continue
		}

		response.WriteString(responseBody.Choices[0].Delta.Content)
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading streamed response: %w", err)
	}
	return response.String(), nil
}

type requestBody struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int64     `json:"max_completion_tokens,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role         string  `json:"role,omitempty"`
			Content      string  `json:"content,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
