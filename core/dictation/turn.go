// Package dictation keeps the chronological log of turns shown to the user.
package dictation

import (
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerRemote Speaker = "remote"
)

type Turn struct {
	ID        string
	StartedAt time.Time
	Text      string
	Speaker   Speaker
	// Marker is the segment offset where this turn's text starts in the
	// capture it was dictated in.
	Marker int
	// Open is set on the single user turn still being dictated.
	Open bool
}

// IsPlaceholder reports whether the turn is the empty closed user turn left
// behind when a user turn ends.
func (t Turn) IsPlaceholder() bool {
	return t.Speaker == SpeakerUser && !t.Open && t.Text == ""
}

func newTurn(speaker Speaker, text string, marker int, open bool) Turn {
	return Turn{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Text:      text,
		Speaker:   speaker,
		Marker:    marker,
		Open:      open,
	}
}
