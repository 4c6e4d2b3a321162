package llms

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type clientStub struct {
	replies  []string
	err      error
	received [][]Message
}

func (c *clientStub) Complete(_ context.Context, messages []Message) (string, error) {
	c.received = append(c.received, append([]Message(nil), messages...))
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "ok", nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func TestConversationSendsSystemPromptHistoryAndPrompt(t *testing.T) {
	client := &clientStub{replies: []string{" Hi! ", "Sure."}}
	conversation := NewConversation(client, WithSystemPrompt("be a barista"), WithGreeting("What can I get you?"))

	if _, err := conversation.Generate(context.Background(), "hello"); err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}
	reply, err := conversation.Generate(context.Background(), "a latte please")
	if err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}
	if reply != "Sure." {
		t.Fatalf("expected reply %q, got %q", "Sure.", reply)
	}

	expected := []Message{
		SystemMessage("be a barista"),
		AssistantMessage("What can I get you?"),
		UserMessage("hello"),
		AssistantMessage("Hi!"),
		UserMessage("a latte please"),
	}
	if got := client.received[1]; !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected messages %+v, got %+v", expected, got)
	}
}

func TestConversationFailedTurnsAreForgotten(t *testing.T) {
	client := &clientStub{err: errors.New("rate limited")}
	conversation := NewConversation(client)

	if _, err := conversation.Generate(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error")
	}
	if got := conversation.History(); len(got) != 0 {
		t.Fatalf("expected failed turn not to be remembered, got %+v", got)
	}
}

func TestConversationEmptyReplyIsNotRemembered(t *testing.T) {
	client := &clientStub{replies: []string{"  "}}
	conversation := NewConversation(client)

	reply, err := conversation.Generate(context.Background(), "hello")
	if err != nil || reply != "" {
		t.Fatalf("expected empty reply without error, got %q/%v", reply, err)
	}
	if got := conversation.History(); len(got) != 0 {
		t.Fatalf("expected empty reply not to be remembered, got %+v", got)
	}
}

func TestConversationRejectsEmptyPrompt(t *testing.T) {
	conversation := NewConversation(&clientStub{})

	if _, err := conversation.Generate(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestConversationHistoryIsBounded(t *testing.T) {
	conversation := NewConversation(&clientStub{}, WithMaxHistory(4), WithGreeting("hey"))

	for _, prompt := range []string{"one", "two", "three"} {
		if _, err := conversation.Generate(context.Background(), prompt); err != nil {
			t.Fatalf("expected generate to succeed, got %v", err)
		}
	}

	history := conversation.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	if history[0] != UserMessage("two") {
		t.Fatalf("expected history to start at a user message, got %+v", history[0])
	}
}

func TestConversationResetKeepsGreeting(t *testing.T) {
	conversation := NewConversation(&clientStub{}, WithGreeting("hey"))

	if _, err := conversation.Generate(context.Background(), "hello"); err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}
	conversation.Reset()

	if got := conversation.History(); !reflect.DeepEqual(got, []Message{AssistantMessage("hey")}) {
		t.Fatalf("expected only the greeting after reset, got %+v", got)
	}
}

func TestLeadingAssistantAsSystem(t *testing.T) {
	messages := LeadingAssistantAsSystem([]Message{
		SystemMessage("sys"),
		AssistantMessage("hi"),
		UserMessage("hello"),
		AssistantMessage("reply"),
	})

	if messages[1].Role != MessageRoleSystem {
		t.Fatalf("expected leading assistant message to become system, got %+v", messages[1])
	}
	if messages[3].Role != MessageRoleAssistant {
		t.Fatalf("expected later assistant messages to stay, got %+v", messages[3])
	}
}
