// Package transcript reconciles cumulative recognizer snapshots into the text
// of the turn currently being dictated.
package transcript

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-rehearse/core/speechtotext"
)

// DefaultInactivityTimeout is how long the stream waits after a partial before
// it finalizes the turn itself.
const DefaultInactivityTimeout = 2 * time.Second

// Update is what the stream reports for every snapshot it accepts.
type Update struct {
	// Text is the space-joined suffix of segments starting at Marker.
	Text    string
	IsFinal bool
	// Marker is the segment offset the text was computed from.
	Marker       int
	SegmentCount int
	// Synthesized is set when the final was produced by the inactivity
	// watchdog rather than by the recognizer.
	Synthesized bool
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithInactivityTimeout overrides DefaultInactivityTimeout. Non-positive
// values are ignored.
func WithInactivityTimeout(timeout time.Duration) StreamOption {
	return func(s *Stream) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithDispatcher sets where watchdog expiry runs. Owners with a serialized
// loop should pass a function that enqueues onto it.
func WithDispatcher(dispatch func(func())) StreamOption {
	return func(s *Stream) {
		if dispatch != nil {
			s.dispatch = dispatch
		}
	}
}

// WithUpdateHandler receives every Update the stream produces.
func WithUpdateHandler(handler func(Update)) StreamOption {
	return func(s *Stream) {
		s.onUpdate = handler
	}
}

// Stream turns partial and final snapshots into suffix text relative to a
// marker, and synthesizes a final when the recognizer goes quiet without
// finalizing.
type Stream struct {
	timeout  time.Duration
	dispatch func(func())
	onUpdate func(Update)

	mu       sync.Mutex
	marker   int
	segments []speechtotext.Segment
	timer    *time.Timer
	armID    uint64
	armed    bool
}

// NewStream returns an idle stream with the marker at zero.
func NewStream(opts ...StreamOption) *Stream {
	s := &Stream{
		timeout:  DefaultInactivityTimeout,
		dispatch: func(f func()) { f() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSnapshot accepts a cumulative snapshot of the current capture. Partials
// re-arm the watchdog; a final disarms it.
func (s *Stream) OnSnapshot(snapshot speechtotext.UtteranceSnapshot) {
	s.mu.Lock()
	s.segments = append(s.segments[:0], snapshot.Segments...)
	var update Update
	if snapshot.IsFinal {
		s.disarmLocked()
		update = s.finalizeLocked(false)
	} else {
		s.armLocked()
		update = s.updateLocked(false)
	}
	s.mu.Unlock()

	s.deliver(update)
}

// SetMarker sets the segment offset the next turn starts from. Negative
// markers are clamped to zero.
func (s *Stream) SetMarker(marker int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if marker < 0 {
		marker = 0
	}
	s.marker = marker
}

// Marker returns the current segment offset.
func (s *Stream) Marker() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker
}

// Armed reports whether the inactivity watchdog is waiting to fire.
func (s *Stream) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Stop cancels the watchdog and keeps buffered segments.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

// Reset cancels the watchdog, drops buffered segments and rewinds the marker.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()
	s.segments = nil
	s.marker = 0
}

func (s *Stream) updateLocked(isFinal bool) Update {
	count := len(s.segments)
	if count < s.marker {
		s.marker = 0
	}

	return Update{
		Text:         speechtotext.JoinSegments(s.segments[s.marker:]),
		IsFinal:      isFinal,
		Marker:       s.marker,
		SegmentCount: count,
	}
}

func (s *Stream) finalizeLocked(synthesized bool) Update {
	update := s.updateLocked(true)
	update.Synthesized = synthesized
	s.marker = update.SegmentCount
	return update
}

func (s *Stream) armLocked() {
	s.disarmLocked()

	s.armed = true
	id := s.armID
	s.timer = time.AfterFunc(s.timeout, func() {
		s.dispatch(func() { s.expire(id) })
	})
}

func (s *Stream) disarmLocked() {
	s.armID++
	s.armed = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Stream) expire(id uint64) {
	s.mu.Lock()
	if !s.armed || id != s.armID {
		s.mu.Unlock()
		return
	}
	s.disarmLocked()
	update := s.finalizeLocked(true)
	s.mu.Unlock()

	s.deliver(update)
}

func (s *Stream) deliver(update Update) {
	if s.onUpdate != nil {
		s.onUpdate(update)
	}
}
