// Package provider builds model clients from "provider/model" strings.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-rehearse/core/llms"
	"github.com/koscakluka/ema-rehearse/core/llms/anthropic"
	"github.com/koscakluka/ema-rehearse/core/llms/gemini"
	"github.com/koscakluka/ema-rehearse/core/llms/groq"
	"github.com/koscakluka/ema-rehearse/core/llms/openai"
)

const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Groq      = "groq"
)

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(ctx context.Context, provider, apiKey, model string, opts ...llms.ClientOption) (llms.Client, error) {
	switch provider {
	case OpenAI:
		return openai.NewClient(apiKey, model, opts...), nil
	case Anthropic:
		return anthropic.NewClient(apiKey, model, opts...), nil
	case Gemini:
		return gemini.NewClient(ctx, apiKey, model, opts...)
	case Groq:
		return groq.NewClient(apiKey, model, opts...), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini, groq", provider)
	}
}

// APIKeyEnv is the environment variable each provider reads its key from.
func APIKeyEnv(provider string) string {
	switch provider {
	case OpenAI:
		return "OPENAI_API_KEY"
	case Anthropic:
		return "ANTHROPIC_API_KEY"
	case Gemini:
		return "GEMINI_API_KEY"
	case Groq:
		return "GROQ_API_KEY"
	}
	return ""
}
