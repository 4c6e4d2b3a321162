package speechtotext

import (
	"strings"
	"time"
)

// Segment is a single recognized token. Its position inside a snapshot is
// stable for the lifetime of one capture.
type Segment struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// UtteranceSnapshot is the full ordered list of segments recognized so far in
// the current capture. Segment count only grows within one capture, a new
// capture starts again from zero.
type UtteranceSnapshot struct {
	Segments  []Segment
	IsFinal   bool
	Timestamp time.Time
}

func (s UtteranceSnapshot) Len() int {
	return len(s.Segments)
}

// Text joins every segment of the snapshot.
func (s UtteranceSnapshot) Text() string {
	return JoinSegments(s.Segments)
}

// JoinSegments joins segment texts with single spaces, skipping blank ones.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
