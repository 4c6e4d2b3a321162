package events

const (
	// KindUserTranscriptUpdated identifies a change of the dictated user turn.
	KindUserTranscriptUpdated Kind = "user_input.transcript_updated"
	// KindUserTranscriptFinal identifies the end of a user turn.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserTranscriptUpdated carries the current text of the open user turn.
type UserTranscriptUpdated struct {
	Base
	Transcript string
	Marker     int
}

// NewUserTranscriptUpdated creates a user transcript update event.
func NewUserTranscriptUpdated(transcript string, marker int) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), Transcript: transcript, Marker: marker}
}

// UserTranscriptFinal carries the final text of a user turn. Synthesized is
// set when the inactivity watchdog ended the turn.
type UserTranscriptFinal struct {
	Base
	Transcript  string
	Synthesized bool
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string, synthesized bool) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript, Synthesized: synthesized}
}
