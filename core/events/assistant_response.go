package events

const (
	// KindAssistantResponseStarted identifies a generator request.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseFinal identifies a generator reply.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantResponseFailed identifies a failed generator request.
	KindAssistantResponseFailed Kind = "assistant_response.failed"
)

// AssistantResponseStarted carries the prompt handed to the generator.
type AssistantResponseStarted struct {
	Base
	Prompt string
}

// NewAssistantResponseStarted creates a response started event.
func NewAssistantResponseStarted(prompt string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), Prompt: prompt}
}

// AssistantResponseFinal carries the generated reply.
type AssistantResponseFinal struct {
	Base
	Response string
}

// NewAssistantResponseFinal creates a response final event.
func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}

// AssistantResponseFailed carries the generator error.
type AssistantResponseFailed struct {
	Base
	Err error
}

// NewAssistantResponseFailed creates a response failed event.
func NewAssistantResponseFailed(err error) AssistantResponseFailed {
	return AssistantResponseFailed{Base: NewBase(KindAssistantResponseFailed), Err: err}
}
