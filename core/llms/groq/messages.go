package groq

import (
	"github.com/koscakluka/ema-rehearse/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(messages []llms.Message) []message {
	converted := make([]message, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}

		role := messageRoleUser
		switch m.Role {
		case llms.MessageRoleSystem:
			role = messageRoleSystem
		case llms.MessageRoleAssistant:
			role = messageRoleAssistant
		}
		converted = append(converted, message{Role: role, Content: m.Content})
	}
	return converted
}
