package orchestration

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/koscakluka/ema-rehearse/core/dictation"
	"github.com/koscakluka/ema-rehearse/core/events"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	recognizer   *recognizerStub
	generator    *generatorStub
	speech       *speechStub
	tracker      *activityTracker
	events       *eventRecorder
	errors       *errorRecorder
}

func newFixture(t *testing.T, opts ...OrchestratorOption) *orchestratorFixture {
	t.Helper()

	tracker := &activityTracker{}
	f := &orchestratorFixture{
		recognizer: &recognizerStub{tracker: tracker},
		generator:  &generatorStub{},
		speech:     &speechStub{tracker: tracker},
		tracker:    tracker,
		events:     &eventRecorder{},
		errors:     &errorRecorder{},
	}

	f.orchestrator = NewOrchestrator(append([]OrchestratorOption{
		WithRecognizer(f.recognizer),
		WithResponseGenerator(f.generator),
		WithSpeechOutput(f.speech),
		WithEventHandler(f.events.record),
		WithErrorHandler(f.errors.record),
		WithInactivityTimeout(time.Minute),
	}, opts...)...)
	t.Cleanup(f.orchestrator.Close)

	return f
}

func (f *orchestratorFixture) start(t *testing.T) {
	t.Helper()

	if err := f.orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if got := f.orchestrator.State(); got != StateListening {
		t.Fatalf("expected listening after start, got %s", got)
	}
}

func TestEndToEndTurn(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.recognizer.send(false, "hello")
	f.recognizer.send(false, "hello there")
	waitForCondition(t, time.Second, "open user turn", func() bool {
		turns := f.orchestrator.VisibleTurns()
		return len(turns) == 1 && turns[0].Text == "hello there"
	})

	turns := f.orchestrator.VisibleTurns()
	if !turns[0].Open || turns[0].Speaker != dictation.SpeakerUser {
		t.Fatalf("expected a single open user turn, got %+v", turns[0])
	}

	f.recognizer.send(true, "hello there")
	waitForState(t, f.orchestrator, StateSpeaking)
	waitForSpeech(t, f.speech)

	if got := f.generator.promptList(); !reflect.DeepEqual(got, []string{"hello there"}) {
		t.Fatalf("expected exactly one generator call with the final text, got %v", got)
	}
	expected := []string{"user: hello there", "remote: reply to hello there"}
	if got := turnTexts(f.orchestrator.VisibleTurns()); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected turns %v, got %v", expected, got)
	}
	if got := f.speech.spoken(); !reflect.DeepEqual(got, []string{"reply to hello there"}) {
		t.Fatalf("expected the reply to be spoken, got %v", got)
	}

	f.speech.complete()
	waitForState(t, f.orchestrator, StateListening)
	waitForCondition(t, time.Second, "capture restart", func() bool {
		return f.recognizer.startCount() == 2
	})

	f.recognizer.send(false, "how are you doing")
	waitForCondition(t, time.Second, "next user turn", func() bool {
		return len(f.orchestrator.VisibleTurns()) == 3
	})

	expected = append(expected, "user: how are you doing")
	if got := turnTexts(f.orchestrator.VisibleTurns()); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected turns %v, got %v", expected, got)
	}

	for _, kind := range []events.Kind{
		events.KindUserTranscriptUpdated,
		events.KindUserTranscriptFinal,
		events.KindAssistantResponseStarted,
		events.KindAssistantResponseFinal,
		events.KindAssistantPlaybackStarted,
		events.KindAssistantPlaybackEnded,
	} {
		if !f.events.has(kind) {
			t.Fatalf("expected %q event, got %v", kind, f.events.kinds())
		}
	}
}

func TestSilentFinalKeepsListening(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.recognizer.send(true, "")
	waitForCondition(t, time.Second, "final processed", func() bool {
		return f.events.has(events.KindUserTranscriptFinal)
	})

	if got := f.orchestrator.State(); got != StateListening {
		t.Fatalf("expected to stay listening, got %s", got)
	}
	if got := f.generator.promptList(); len(got) != 0 {
		t.Fatalf("expected no generator call, got %v", got)
	}
	if got := f.orchestrator.VisibleTurns(); len(got) != 0 {
		t.Fatalf("expected no visible turns, got %v", turnTexts(got))
	}
	if got := f.recognizer.startCount(); got != 1 {
		t.Fatalf("expected capture to keep running, got %d starts", got)
	}
}

func TestEmptyPartialsAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.recognizer.send(false, "")
	f.recognizer.send(false, "hi")
	waitForCondition(t, time.Second, "partial", func() bool {
		return len(f.orchestrator.VisibleTurns()) == 1
	})

	if got := f.orchestrator.Turns(); len(got) != 1 {
		t.Fatalf("expected only the non-empty partial to create a turn, got %v", turnTexts(got))
	}
}

func TestInactivityTimeoutFinalizesTurn(t *testing.T) {
	f := newFixture(t, WithInactivityTimeout(30*time.Millisecond))
	f.start(t)

	f.recognizer.send(false, "are you")
	f.recognizer.send(false, "are you there")

	waitForState(t, f.orchestrator, StateSpeaking)
	if got := f.generator.promptList(); !reflect.DeepEqual(got, []string{"are you there"}) {
		t.Fatalf("expected watchdog to hand off the last partial, got %v", got)
	}

	waitForCondition(t, time.Second, "synthesized final event", func() bool {
		return f.events.has(events.KindUserTranscriptFinal)
	})
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	for _, event := range f.events.events {
		if final, ok := event.(events.UserTranscriptFinal); ok && !final.Synthesized {
			t.Fatalf("expected the final to be marked synthesized")
		}
	}
}

func TestInactivityTimeoutFiresOnce(t *testing.T) {
	f := newFixture(t, WithInactivityTimeout(20*time.Millisecond))
	f.generator.release = make(chan struct{})
	f.start(t)

	f.recognizer.send(false, "hold on")
	waitForState(t, f.orchestrator, StateAwaitingResponse)
	time.Sleep(80 * time.Millisecond)

	if got := f.generator.promptList(); len(got) != 1 {
		t.Fatalf("expected a single generator call, got %v", got)
	}
	close(f.generator.release)
	waitForState(t, f.orchestrator, StateSpeaking)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.generator.release = make(chan struct{})
	f.start(t)

	f.recognizer.send(true, "hello")
	waitForState(t, f.orchestrator, StateAwaitingResponse)
	waitForCondition(t, time.Second, "generator call", func() bool {
		return len(f.generator.promptList()) == 1
	})

	f.orchestrator.Stop()
	f.start(t)
	close(f.generator.release)
	time.Sleep(50 * time.Millisecond)

	if got := f.orchestrator.State(); got != StateListening {
		t.Fatalf("expected new session to keep listening, got %s", got)
	}
	if got := f.orchestrator.Turns(); len(got) != 0 {
		t.Fatalf("expected stale reply to be dropped, got %v", turnTexts(got))
	}
	if got := f.speech.spoken(); len(got) != 0 {
		t.Fatalf("expected nothing spoken, got %v", got)
	}
	if got := f.orchestrator.Generation(); got != 3 {
		t.Fatalf("expected generation 3 after start, stop, start, got %d", got)
	}
}

func TestStaleSpeechCompletionIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.recognizer.send(true, "hello")
	waitForSpeech(t, f.speech)

	f.speech.mu.Lock()
	staleComplete := f.speech.onComplete
	f.speech.onComplete = nil
	f.speech.mu.Unlock()

	f.orchestrator.Stop()
	f.start(t)
	f.recognizer.send(true, "again")
	waitForSpeech(t, f.speech)

	staleComplete()
	time.Sleep(50 * time.Millisecond)

	if got := f.orchestrator.State(); got != StateSpeaking {
		t.Fatalf("expected stale completion to leave speaking state alone, got %s", got)
	}
	if got := f.recognizer.startCount(); got != 2 {
		t.Fatalf("expected no capture restart from stale completion, got %d starts", got)
	}
}

func TestGeneratorFailureReturnsToListening(t *testing.T) {
	testCases := []struct {
		name  string
		reply generatorReply
	}{
		{name: "error", reply: generatorReply{err: errors.New("upstream down")}},
		{name: "empty reply", reply: generatorReply{text: "   "}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			f := newFixture(t)
			f.generator.replies = []generatorReply{testCase.reply}
			f.start(t)

			f.recognizer.send(true, "hello")
			waitForCondition(t, time.Second, "capture restart", func() bool {
				return f.recognizer.startCount() == 2
			})

			if got := f.orchestrator.State(); got != StateListening {
				t.Fatalf("expected listening after failure, got %s", got)
			}
			errs := f.errors.list()
			if len(errs) != 1 || !errors.Is(errs[0], ErrGeneratorFailure) {
				t.Fatalf("expected one generator failure, got %v", errs)
			}
			if !f.events.has(events.KindAssistantResponseFailed) {
				t.Fatalf("expected response failed event")
			}
			if got := turnTexts(f.orchestrator.VisibleTurns()); !reflect.DeepEqual(got, []string{"user: hello"}) {
				t.Fatalf("expected only the user turn, got %v", got)
			}
			if got := f.generator.promptList(); len(got) != 1 {
				t.Fatalf("expected no retry, got %v", got)
			}
		})
	}
}

func TestResumeFailureEndsSession(t *testing.T) {
	testCases := []struct {
		name       string
		reply      generatorReply
		afterFinal func(t *testing.T, f *orchestratorFixture)
		wantErrors []error
	}{
		{
			name:  "after speech",
			reply: generatorReply{text: "Nice to meet you."},
			afterFinal: func(t *testing.T, f *orchestratorFixture) {
				waitForSpeech(t, f.speech)
				f.recognizer.failStarts(errors.New("microphone unplugged"))
				f.speech.complete()
			},
			wantErrors: []error{ErrRecognizerUnavailable},
		},
		{
			name:       "after generator failure",
			reply:      generatorReply{err: errors.New("upstream down")},
			wantErrors: []error{ErrGeneratorFailure, ErrRecognizerUnavailable},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			f := newFixture(t)
			f.generator.replies = []generatorReply{testCase.reply}
			f.start(t)

			if testCase.afterFinal == nil {
				f.recognizer.failStarts(errors.New("microphone unplugged"))
			}
			f.recognizer.send(true, "hello there")
			if testCase.afterFinal != nil {
				testCase.afterFinal(t, f)
			}

			waitForCondition(t, 2*time.Second, "recognizer unavailable error", func() bool {
				return len(f.errors.list()) == len(testCase.wantErrors)
			})
			waitForState(t, f.orchestrator, StateIdle)

			errs := f.errors.list()
			for i, want := range testCase.wantErrors {
				if !errors.Is(errs[i], want) {
					t.Fatalf("expected error %d to be %v, got %v", i, want, errs[i])
				}
			}
			if !f.events.has(events.KindTurnCancelled) {
				t.Fatalf("expected the session to be cancelled")
			}
			if got := f.orchestrator.VisibleTurns(); len(got) != 0 {
				t.Fatalf("expected the log to be cleared, got %v", turnTexts(got))
			}
			if got := f.recognizer.startCount(); got != 1 {
				t.Fatalf("expected only the first capture to start, got %d", got)
			}
		})
	}
}

func TestStartFailsWhenRecognizerUnavailable(t *testing.T) {
	f := newFixture(t)
	f.recognizer.startErr = errors.New("microphone busy")

	err := f.orchestrator.Start(context.Background())
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
	if got := f.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected idle after failed start, got %s", got)
	}
	if got := f.orchestrator.Turns(); len(got) != 0 {
		t.Fatalf("expected empty log, got %v", turnTexts(got))
	}
}

func TestStartWithoutRecognizer(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	if err := o.Start(context.Background()); !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestCaptureAndSpeechNeverOverlap(t *testing.T) {
	f := newFixture(t)
	f.speech.autoComplete = true
	f.start(t)

	for i, text := range []string{"first question", "second question", "third question"} {
		f.recognizer.send(false, text)
		f.recognizer.send(true, text)
		waitForCondition(t, 2*time.Second, "capture restart", func() bool {
			return f.recognizer.startCount() == i+2 && f.orchestrator.State() == StateListening
		})
	}

	overlaps, doubleCapture := f.tracker.violations()
	if overlaps != 0 || doubleCapture != 0 {
		t.Fatalf("expected no overlaps or double captures, got %d/%d", overlaps, doubleCapture)
	}
	if got := len(f.orchestrator.VisibleTurns()); got != 6 {
		t.Fatalf("expected three user and three remote turns, got %d", got)
	}
}

func TestSnapshotsFromPreviousCaptureAreDropped(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	oldCapture := f.recognizer.callback()
	f.recognizer.send(true, "hello")
	waitForSpeech(t, f.speech)
	f.speech.complete()
	waitForCondition(t, time.Second, "capture restart", func() bool {
		return f.recognizer.startCount() == 2
	})

	oldCapture(snapshot(false, "ghost words"))
	f.recognizer.send(false, "fresh")
	waitForCondition(t, time.Second, "fresh partial", func() bool {
		return len(f.orchestrator.VisibleTurns()) == 3
	})

	for _, text := range turnTexts(f.orchestrator.VisibleTurns()) {
		if text == "user: ghost words" {
			t.Fatalf("expected snapshot from previous capture to be dropped")
		}
	}
}

func TestStopDuringSpeechClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.recognizer.send(true, "hello")
	waitForState(t, f.orchestrator, StateSpeaking)

	f.orchestrator.Stop()

	if got := f.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected idle after stop, got %s", got)
	}
	if got := f.speech.stopCount(); got != 1 {
		t.Fatalf("expected speech output to be stopped once, got %d", got)
	}
	if got := f.orchestrator.Turns(); len(got) != 0 {
		t.Fatalf("expected cleared log, got %v", turnTexts(got))
	}
	if got := f.generator.resetCount(); got != 1 {
		t.Fatalf("expected generator memory reset, got %d", got)
	}
	if !f.events.has(events.KindTurnCancelled) {
		t.Fatalf("expected turn cancelled event")
	}

	f.speech.complete()
	time.Sleep(30 * time.Millisecond)
	if got := f.recognizer.startCount(); got != 1 {
		t.Fatalf("expected no restart after stop, got %d starts", got)
	}
}

func TestResetCancelsInFlightGeneration(t *testing.T) {
	f := newFixture(t)
	f.generator.release = make(chan struct{})
	f.generator.honorCtx = true
	f.start(t)

	f.recognizer.send(true, "hello")
	waitForCondition(t, time.Second, "generator call", func() bool {
		return len(f.generator.promptList()) == 1
	})

	f.orchestrator.Reset()
	time.Sleep(50 * time.Millisecond)

	if got := f.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected idle after reset, got %s", got)
	}
	if errs := f.errors.list(); len(errs) != 0 {
		t.Fatalf("expected cancelled generation not to be reported, got %v", errs)
	}
}

func TestSpeakErrorCountsAsCompletion(t *testing.T) {
	f := newFixture(t)
	f.speech.speakErr = errors.New("no audio device")
	f.start(t)

	f.recognizer.send(true, "hello")
	waitForCondition(t, time.Second, "capture restart", func() bool {
		return f.recognizer.startCount() == 2
	})

	if got := f.orchestrator.State(); got != StateListening {
		t.Fatalf("expected listening after failed speech, got %s", got)
	}
}

func TestStopAndResetAreNoopsWhenIdle(t *testing.T) {
	f := newFixture(t)

	f.orchestrator.Stop()
	f.orchestrator.Reset()

	if got := f.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if f.events.has(events.KindTurnCancelled) {
		t.Fatalf("expected no cancellation while idle")
	}
	if got := f.orchestrator.Generation(); got != 2 {
		t.Fatalf("expected stop and reset to advance the generation, got %d", got)
	}
}

func TestSubscribeSeesDictationChanges(t *testing.T) {
	f := newFixture(t)

	updates := make(chan []dictation.Turn, 16)
	unsubscribe := f.orchestrator.Subscribe(func(turns []dictation.Turn) {
		select {
		case updates <- turns:
		default:
		}
	})
	defer unsubscribe()

	f.start(t)
	f.recognizer.send(false, "hi")

	deadline := time.After(time.Second)
	for {
		select {
		case turns := <-updates:
			if len(turns) == 1 && turns[0].Text == "hi" {
				return
			}
		case <-deadline:
			t.Fatalf("expected observer to see the partial")
		}
	}
}

func TestCloseRejectsFurtherStarts(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.orchestrator.Close()

	if err := f.orchestrator.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := f.recognizer.startCount(); got != 1 {
		t.Fatalf("expected no capture after close, got %d starts", got)
	}
}
