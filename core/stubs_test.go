package orchestration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-rehearse/core/dictation"
	"github.com/koscakluka/ema-rehearse/core/events"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func waitForState(t *testing.T, o *Orchestrator, state SessionState) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "state "+state.String(), func() bool {
		return o.State() == state
	})
}

func waitForSpeech(t *testing.T, speech *speechStub) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "pending speech", speech.pending)
}

func snapshot(isFinal bool, text string) speechtotext.UtteranceSnapshot {
	segments := []speechtotext.Segment{}
	for _, word := range strings.Fields(text) {
		segments = append(segments, speechtotext.Segment{Text: word})
	}
	return speechtotext.UtteranceSnapshot{Segments: segments, IsFinal: isFinal, Timestamp: time.Now()}
}

// activityTracker records overlaps between capture and speech output.
type activityTracker struct {
	mu            sync.Mutex
	capturing     bool
	speaking      bool
	overlaps      int
	doubleCapture int
}

func (a *activityTracker) setCapturing(capturing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if capturing && a.capturing {
		a.doubleCapture++
	}
	a.capturing = capturing
	if a.capturing && a.speaking {
		a.overlaps++
	}
}

func (a *activityTracker) setSpeaking(speaking bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.speaking = speaking
	if a.capturing && a.speaking {
		a.overlaps++
	}
}

func (a *activityTracker) violations() (overlaps, doubleCapture int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overlaps, a.doubleCapture
}

type recognizerStub struct {
	tracker  *activityTracker
	startErr error

	mu         sync.Mutex
	starts     int
	stops      int
	onSnapshot func(speechtotext.UtteranceSnapshot)
}

func (r *recognizerStub) StartCapture(_ context.Context, onSnapshot func(speechtotext.UtteranceSnapshot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startErr != nil {
		return r.startErr
	}
	if r.tracker != nil {
		r.tracker.setCapturing(true)
	}
	r.starts++
	r.onSnapshot = onSnapshot
	return nil
}

func (r *recognizerStub) StopCapture() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tracker != nil {
		r.tracker.setCapturing(false)
	}
	r.stops++
	return nil
}

// failStarts makes every later StartCapture fail with err.
func (r *recognizerStub) failStarts(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

func (r *recognizerStub) send(isFinal bool, text string) {
	r.mu.Lock()
	onSnapshot := r.onSnapshot
	r.mu.Unlock()

	if onSnapshot != nil {
		onSnapshot(snapshot(isFinal, text))
	}
}

func (r *recognizerStub) callback() func(speechtotext.UtteranceSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onSnapshot
}

func (r *recognizerStub) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *recognizerStub) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type generatorReply struct {
	text string
	err  error
}

type generatorStub struct {
	// release, when set, holds every Generate call until it is closed.
	release  chan struct{}
	honorCtx bool

	mu      sync.Mutex
	replies []generatorReply
	prompts []string
	resets  int
}

func (g *generatorStub) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	reply := generatorReply{text: "reply to " + prompt}
	if len(g.replies) > 0 {
		reply = g.replies[0]
		g.replies = g.replies[1:]
	}
	g.mu.Unlock()

	if g.release != nil {
		if g.honorCtx {
			select {
			case <-g.release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else {
			<-g.release
		}
	}

	return reply.text, reply.err
}

func (g *generatorStub) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
}

func (g *generatorStub) promptList() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *generatorStub) resetCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resets
}

type speechStub struct {
	tracker      *activityTracker
	autoComplete bool
	speakErr     error

	mu         sync.Mutex
	texts      []string
	stops      int
	onComplete func()
}

func (s *speechStub) Speak(_ context.Context, text string, onComplete func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = append(s.texts, text)
	if s.speakErr != nil {
		return s.speakErr
	}
	if s.tracker != nil {
		s.tracker.setSpeaking(true)
	}

	if s.autoComplete {
		go func() {
			time.Sleep(5 * time.Millisecond)
			if s.tracker != nil {
				s.tracker.setSpeaking(false)
			}
			onComplete()
		}()
		return nil
	}
	s.onComplete = onComplete
	return nil
}

func (s *speechStub) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracker != nil {
		s.tracker.setSpeaking(false)
	}
	s.stops++
	return nil
}

// complete finishes the pending playback and returns its completion callback
// so tests can replay it.
func (s *speechStub) complete() func() {
	s.mu.Lock()
	onComplete := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	if onComplete == nil {
		return func() {}
	}
	if s.tracker != nil {
		s.tracker.setSpeaking(false)
	}
	onComplete()
	return onComplete
}

func (s *speechStub) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onComplete != nil
}

func (s *speechStub) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *speechStub) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]events.Kind, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (r *eventRecorder) has(kind events.Kind) bool {
	for _, recorded := range r.kinds() {
		if recorded == kind {
			return true
		}
	}
	return false
}

type errorRecorder struct {
	mu     sync.Mutex
	errors []error
}

func (r *errorRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *errorRecorder) list() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

func turnTexts(turns []dictation.Turn) []string {
	texts := make([]string, 0, len(turns))
	for _, turn := range turns {
		texts = append(texts, string(turn.Speaker)+": "+turn.Text)
	}
	return texts
}
