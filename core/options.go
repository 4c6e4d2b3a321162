package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-rehearse/core/events"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
)

type OrchestratorOption func(*Orchestrator)

// Recognizer produces cumulative snapshots of the current capture until
// StopCapture returns.
type Recognizer interface {
	StartCapture(ctx context.Context, onSnapshot func(speechtotext.UtteranceSnapshot)) error
	StopCapture() error
}

func WithRecognizer(recognizer Recognizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recognizer = recognizer
	}
}

type ResponseGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func WithResponseGenerator(generator ResponseGenerator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.generator = generator
	}
}

// SpeechOutput plays a reply and calls onComplete once playback has finished
// or was stopped.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, onComplete func()) error
	Stop() error
}

func WithSpeechOutput(speech SpeechOutput) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speech = speech
	}
}

// WithInactivityTimeout sets how long the recognizer may stay quiet before the
// open user turn is finalized anyway.
func WithInactivityTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.inactivityTimeout = timeout
		}
	}
}

// WithEventHandler receives every orchestration event. Handlers run on the
// runtime goroutine and must not call Start, Stop or Reset synchronously.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.emit = newEventEmitter(o.emit, handler)
	}
}

// WithErrorHandler receives errors the loop recovers from, such as generator
// failures.
func WithErrorHandler(handler func(error)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onError = handler
	}
}

func WithBaseContext(ctx context.Context) OrchestratorOption {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.baseContext = ctx
		}
	}
}
