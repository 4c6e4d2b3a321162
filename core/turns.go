package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/koscakluka/ema-rehearse/core/events"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
	"github.com/koscakluka/ema-rehearse/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	errNoRecognizer = errors.New("no recognizer configured")
	errNoGenerator  = errors.New("no response generator configured")
	errEmptyReply   = errors.New("empty reply")
)

func (o *Orchestrator) start(ctx context.Context) error {
	if o.State() != StateIdle {
		return nil
	}

	o.generation.Add(1)
	o.log.Clear()
	o.stream.Reset()

	if err := o.startCapture(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrRecognizerUnavailable, err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	o.setState(ctx, StateListening)
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, reason string) {
	live := o.State().Live()

	o.generation.Add(1)
	if o.cancelGeneration != nil {
		o.cancelGeneration()
		o.cancelGeneration = nil
	}

	o.stopCapture(ctx)
	o.stream.Stop()
	o.stopSpeech(ctx)
	o.log.Clear()

	if live {
		o.resetGenerator()
		o.emitEvent(events.NewTurnCancelled(reason))
	}
	o.setState(ctx, StateIdle)
}

// resetGenerator clears conversation memory of generators that keep one.
func (o *Orchestrator) resetGenerator() {
	switch generator := o.generator.(type) {
	case interface{ Reset() }:
		generator.Reset()
	}
}

func (o *Orchestrator) startCapture(ctx context.Context) error {
	if o.recognizer == nil {
		return errNoRecognizer
	}
	if o.speechActive {
		o.stopSpeech(ctx)
	}
	if o.captureActive {
		o.stopCapture(ctx)
	}

	o.captureID++
	captureID := o.captureID
	// Segment counts restart with every capture.
	o.stream.SetMarker(0)

	err := o.recognizer.StartCapture(o.baseContext, func(snapshot speechtotext.UtteranceSnapshot) {
		o.runtime.enqueue("snapshot", func(ctx context.Context) {
			o.handleSnapshot(ctx, captureID, snapshot)
		})
	})
	if err != nil {
		return err
	}

	o.captureActive = true
	return nil
}

func (o *Orchestrator) stopCapture(ctx context.Context) {
	if !o.captureActive {
		return
	}

	o.captureActive = false
	o.captureID++
	o.stream.Stop()
	if err := o.recognizer.StopCapture(); err != nil {
		logger.WarnContext(ctx, "failed to stop capture", "error", err)
	}
}

// resumeListening restarts capture after a reply was spoken or failed. A
// recognizer that cannot restart ends the session.
func (o *Orchestrator) resumeListening(ctx context.Context) {
	o.setState(ctx, StateListening)
	if err := o.startCapture(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrRecognizerUnavailable, err)
		logger.ErrorContext(ctx, "failed to resume listening", "error", err)
		o.reportError(err)
		o.stop(ctx, "stop")
	}
}

func (o *Orchestrator) handleSnapshot(ctx context.Context, captureID uint64, snapshot speechtotext.UtteranceSnapshot) {
	if captureID != o.captureID || !o.captureActive {
		logger.DebugContext(ctx, "dropping snapshot from previous capture", "capture_id", captureID)
		return
	}

	o.stream.OnSnapshot(snapshot)
}

func (o *Orchestrator) handleTranscriptUpdate(update transcript.Update) {
	ctx := o.baseContext
	if o.State() != StateListening {
		logger.DebugContext(ctx, "ignoring transcript update outside listening", "state", o.State().String())
		return
	}

	if !update.IsFinal {
		if update.Text == "" {
			return
		}
		o.log.AppendOrReplaceUser(update.Text, update.Marker)
		o.emitEvent(events.NewUserTranscriptUpdated(update.Text, update.Marker))
		return
	}

	o.log.CloseUserTurn(update.Text, update.SegmentCount)
	o.emitEvent(events.NewUserTranscriptFinal(update.Text, update.Synthesized))
	if update.Text == "" {
		return
	}

	userTurnCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("synthesized", update.Synthesized)))
	o.stopCapture(ctx)
	o.setState(ctx, StateAwaitingResponse)
	o.requestResponse(ctx, update.Text)
}

func (o *Orchestrator) requestResponse(ctx context.Context, prompt string) {
	generation := o.generation.Load()
	o.emitEvent(events.NewAssistantResponseStarted(prompt))

	if o.generator == nil {
		o.runtime.enqueue("response", func(ctx context.Context) {
			o.handleResponse(ctx, generation, "", errNoGenerator)
		})
		return
	}

	generateCtx, cancel := context.WithCancel(o.baseContext)
	o.cancelGeneration = cancel
	go func() {
		defer cancel()

		spanCtx, span := tracer.Start(generateCtx, "generate response")
		reply, err := o.generator.Generate(spanCtx, prompt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		o.runtime.enqueue("response", func(ctx context.Context) {
			o.handleResponse(ctx, generation, reply, err)
		})
	}()
}

func (o *Orchestrator) handleResponse(ctx context.Context, generation uint64, reply string, err error) {
	if generation != o.generation.Load() || o.State() != StateAwaitingResponse {
		o.discardStale(ctx, "response", generation)
		return
	}
	o.cancelGeneration = nil

	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrGeneratorFailure, err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "response generation failed", "error", err)
		generatorFailureCounter.Add(ctx, 1)

		o.reportError(err)
		o.emitEvent(events.NewAssistantResponseFailed(err))
		o.resumeListening(ctx)
		return
	}

	o.log.AppendRemote(reply)
	o.emitEvent(events.NewAssistantResponseFinal(reply))
	o.setState(ctx, StateSpeaking)
	o.startSpeech(ctx, reply)
}

func (o *Orchestrator) startSpeech(ctx context.Context, text string) {
	if o.speech == nil {
		o.emitEvent(events.NewAssistantPlaybackEnded(text))
		o.resumeListening(ctx)
		return
	}
	if o.captureActive {
		o.stopCapture(ctx)
	}

	o.speechID++
	speechID := o.speechID
	generation := o.generation.Load()

	var completeOnce sync.Once
	onComplete := func() {
		completeOnce.Do(func() {
			o.runtime.enqueue("speech completed", func(ctx context.Context) {
				o.handleSpeechCompleted(ctx, generation, speechID, text)
			})
		})
	}

	o.speechActive = true
	o.emitEvent(events.NewAssistantPlaybackStarted(text))
	if err := o.speech.Speak(o.baseContext, text, onComplete); err != nil {
		logger.WarnContext(ctx, "speech output failed", "error", err)
		onComplete()
	}
}

func (o *Orchestrator) handleSpeechCompleted(ctx context.Context, generation, speechID uint64, text string) {
	if generation != o.generation.Load() || speechID != o.speechID || o.State() != StateSpeaking {
		o.discardStale(ctx, "speech", generation)
		return
	}

	o.speechActive = false
	o.emitEvent(events.NewAssistantPlaybackEnded(text))
	o.resumeListening(ctx)
}

func (o *Orchestrator) stopSpeech(ctx context.Context) {
	if !o.speechActive {
		return
	}

	o.speechActive = false
	o.speechID++
	if err := o.speech.Stop(); err != nil {
		logger.WarnContext(ctx, "failed to stop speech output", "error", err)
	}
}

func (o *Orchestrator) discardStale(ctx context.Context, kind string, generation uint64) {
	staleCompletionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	logger.DebugContext(ctx, "discarding completion",
		"error", ErrStaleCompletion,
		"kind", kind,
		"generation", generation,
		"current_generation", o.generation.Load())
}
