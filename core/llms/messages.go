package llms

import (
	"context"
	"fmt"
)

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single entry of the history sent to a model.
type Message struct {
	Role    MessageRole
	Content string
}

func SystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content}
}

// Client completes a conversation with a single reply.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// HasUserMessage reports whether any message was written by the user.
func HasUserMessage(messages []Message) bool {
	for _, message := range messages {
		if message.Role == MessageRoleUser {
			return true
		}
	}
	return false
}

// LeadingAssistantAsSystem rewrites assistant messages that come before the
// first user message as system context, for providers that require the user
// to speak first.
func LeadingAssistantAsSystem(messages []Message) []Message {
	converted := make([]Message, 0, len(messages))
	userSeen := false
	for _, message := range messages {
		if message.Role == MessageRoleUser {
			userSeen = true
		}
		if !userSeen && message.Role == MessageRoleAssistant {
			message = SystemMessage(fmt.Sprintf("You opened the conversation by saying: %q", message.Content))
		}
		converted = append(converted, message)
	}
	return converted
}
