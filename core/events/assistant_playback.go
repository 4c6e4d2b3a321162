package events

const (
	// KindAssistantPlaybackStarted identifies playback start for the current response.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct {
	Base
	Transcript string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(transcript string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), Transcript: transcript}
}

// AssistantPlaybackEnded marks the end of assistant playback.
type AssistantPlaybackEnded struct {
	Base
	Transcript string
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(transcript string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Transcript: transcript}
}
