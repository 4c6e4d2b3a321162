package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-rehearse/core/dictation"
	"github.com/koscakluka/ema-rehearse/core/events"
	"github.com/koscakluka/ema-rehearse/core/transcript"
)

// Orchestrator runs the listen, respond, speak loop of one session. All
// state changes happen on its runtime goroutine; the exported reads are safe
// from any goroutine.
type Orchestrator struct {
	recognizer        Recognizer
	generator         ResponseGenerator
	speech            SpeechOutput
	inactivityTimeout time.Duration
	emit              eventEmitter
	onError           func(error)
	baseContext       context.Context

	runtime *runtime
	log     *dictation.Log
	stream  *transcript.Stream

	state      atomic.Int32
	generation atomic.Uint64

	// Owned by the runtime goroutine.
	captureID        uint64
	captureActive    bool
	speechID         uint64
	speechActive     bool
	cancelGeneration context.CancelFunc

	closeOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		inactivityTimeout: transcript.DefaultInactivityTimeout,
		emit:              noopEventEmitter,
		baseContext:       context.Background(),
		log:               dictation.NewLog(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.runtime = newRuntime(o.baseContext)
	o.stream = transcript.NewStream(
		transcript.WithInactivityTimeout(o.inactivityTimeout),
		transcript.WithDispatcher(func(expire func()) {
			o.runtime.enqueue("inactivity timeout", func(context.Context) { expire() })
		}),
		transcript.WithUpdateHandler(o.handleTranscriptUpdate),
	)
	o.runtime.start()

	return o
}

// Start clears the log and begins listening. It fails with
// ErrRecognizerUnavailable when capture cannot start, leaving the
// orchestrator idle. Starting a live session is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.runtime.call(ctx, "start", o.start)
}

// Stop cancels in-flight work, stops capture and speech, clears the log and
// returns to idle.
func (o *Orchestrator) Stop() {
	if err := o.runtime.call(context.Background(), "stop", func(ctx context.Context) error {
		o.stop(ctx, "stop")
		return nil
	}); err != nil {
		logger.Debug("stop skipped", "error", err)
	}
}

// Reset is Stop followed by dropping everything the transcript stream has
// buffered. Listening restarts only through Start.
func (o *Orchestrator) Reset() {
	if err := o.runtime.call(context.Background(), "reset", func(ctx context.Context) error {
		o.stop(ctx, "reset")
		o.stream.Reset()
		return nil
	}); err != nil {
		logger.Debug("reset skipped", "error", err)
	}
}

func (o *Orchestrator) State() SessionState {
	return SessionState(o.state.Load())
}

func (o *Orchestrator) Turns() []dictation.Turn {
	return o.log.Snapshot()
}

// VisibleTurns returns the turns without boundary placeholders.
func (o *Orchestrator) VisibleTurns() []dictation.Turn {
	return o.log.Visible()
}

// Generation is advanced by every Start, Stop and Reset.
func (o *Orchestrator) Generation() uint64 {
	return o.generation.Load()
}

// Subscribe observes the dictation log. Observers run on the runtime
// goroutine.
func (o *Orchestrator) Subscribe(observer func([]dictation.Turn)) (unsubscribe func()) {
	return o.log.Subscribe(observer)
}

func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Stop()
		o.runtime.end()
		o.runtime.waitUntilEnded()
	})
}

func (o *Orchestrator) setState(ctx context.Context, next SessionState) {
	previous := SessionState(o.state.Swap(int32(next)))
	if previous == next {
		return
	}

	logger.DebugContext(ctx, "session state changed", "from", previous.String(), "to", next.String())
	o.emitEvent(events.NewSessionStateChanged(previous.String(), next.String()))
}

func (o *Orchestrator) reportError(err error) {
	if o.onError != nil {
		o.onError(err)
	}
}
