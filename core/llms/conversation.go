package llms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultMaxHistory = 20

var ErrEmptyPrompt = errors.New("empty prompt")

type ConversationOption func(*Conversation)

func WithSystemPrompt(prompt string) ConversationOption {
	return func(c *Conversation) {
		c.systemPrompt = prompt
	}
}

// WithGreeting seeds the history with the line the assistant opens with.
func WithGreeting(greeting string) ConversationOption {
	return func(c *Conversation) {
		c.greeting = greeting
	}
}

// WithMaxHistory bounds how many user and assistant messages are sent along
// with each prompt.
func WithMaxHistory(maxHistory int) ConversationOption {
	return func(c *Conversation) {
		if maxHistory > 0 {
			c.maxHistory = maxHistory
		}
	}
}

// Conversation turns a model client into a response generator that remembers
// the exchange. Failed turns are not remembered.
type Conversation struct {
	client       Client
	systemPrompt string
	greeting     string
	maxHistory   int

	mu      sync.Mutex
	history []Message
}

func NewConversation(client Client, opts ...ConversationOption) *Conversation {
	c := &Conversation{client: client, maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(c)
	}
	c.history = c.initialHistory()
	return c
}

func (c *Conversation) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate")
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	messages := c.messages(prompt)
	span.SetAttributes(attribute.Int("conversation.messages", len(messages)))

	reply, err := c.client.Complete(ctx, messages)
	if err != nil {
		err = fmt.Errorf("failed to complete conversation: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", nil
	}

	c.remember(prompt, reply)
	return reply, nil
}

// Reset forgets everything but the greeting.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = c.initialHistory()
	logger.Debug("conversation reset")
}

func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

func (c *Conversation) messages(prompt string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]Message, 0, len(c.history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, SystemMessage(c.systemPrompt))
	}
	messages = append(messages, c.history...)
	return append(messages, UserMessage(prompt))
}

func (c *Conversation) remember(prompt, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, UserMessage(prompt), AssistantMessage(reply))
	if overflow := len(c.history) - c.maxHistory; overflow > 0 {
		trimmed := c.history[overflow:]
		for len(trimmed) > 0 && trimmed[0].Role != MessageRoleUser {
			trimmed = trimmed[1:]
		}
		c.history = append([]Message(nil), trimmed...)
	}
}

func (c *Conversation) initialHistory() []Message {
	if c.greeting == "" {
		return nil
	}
	return []Message{AssistantMessage(c.greeting)}
}
