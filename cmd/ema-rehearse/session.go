package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	orchestration "github.com/koscakluka/ema-rehearse/core"
	"github.com/koscakluka/ema-rehearse/core/audio"
	"github.com/koscakluka/ema-rehearse/core/audio/miniaudio"
	"github.com/koscakluka/ema-rehearse/core/audio/portaudio"
	"github.com/koscakluka/ema-rehearse/core/events"
	"github.com/koscakluka/ema-rehearse/core/llms"
	"github.com/koscakluka/ema-rehearse/core/llms/provider"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
	stt "github.com/koscakluka/ema-rehearse/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-rehearse/core/texttospeech"
	tts "github.com/koscakluka/ema-rehearse/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-rehearse/internal/config"
)

type audioInput interface {
	stt.AudioInput
	EncodingInfo() audio.EncodingInfo
}

// sessionFactory owns the devices and the model client shared by every
// session and builds the per-session collaborators around them.
type sessionFactory struct {
	cfg     config.Config
	ctx     context.Context
	notices *noticeBoard

	input    audioInput
	output   texttospeech.AudioOutput
	client   llms.Client
	closers  []func() error
	closeMu  sync.Mutex
	isClosed bool
}

func newSessionFactory(ctx context.Context, cfg config.Config, notices *noticeBoard) (*sessionFactory, error) {
	f := &sessionFactory{cfg: cfg, ctx: ctx, notices: notices}

	providerName, model, err := provider.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	f.client, err = provider.NewClient(ctx, providerName, cfg.LLMAPIKey, model,
		llms.WithMaxTokens(cfg.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", providerName, err)
	}

	var playback *miniaudio.Client
	if cfg.AudioBackend == config.AudioBackendMiniaudio || cfg.Speech {
		if playback, err = miniaudio.NewClient(); err != nil {
			return nil, fmt.Errorf("open audio devices: %w", err)
		}
		f.closers = append(f.closers, playback.Close)
	}

	switch cfg.AudioBackend {
	case config.AudioBackendPortaudio:
		capture, err := portaudio.NewClient(portaudio.DefaultFramesPerBuffer)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open portaudio capture: %w", err)
		}
		f.closers = append(f.closers, capture.Close)
		f.input = capture
	default:
		f.input = playback
	}

	if cfg.Speech {
		f.output = playback
	}

	return f, nil
}

// New is the orchestration.SessionFactory of the app.
func (f *sessionFactory) New(ctx context.Context, scenario orchestration.Scenario) (*orchestration.Orchestrator, error) {
	recognizer := stt.NewRecognizer(f.cfg.DeepgramAPIKey, f.input,
		speechtotext.WithModel(f.cfg.Deepgram.Model),
		speechtotext.WithLanguage(f.cfg.Deepgram.Language),
		speechtotext.WithEndpointing(f.cfg.ParsedEndpointing()),
		speechtotext.WithUtteranceEnd(f.cfg.ParsedUtteranceEnd()),
		speechtotext.WithEncodingInfo(f.input.EncodingInfo()),
	)

	generator := llms.NewConversation(f.client,
		llms.WithSystemPrompt(scenario.Prompt),
		llms.WithGreeting(scenario.Greeting),
		llms.WithMaxHistory(f.cfg.MaxHistory),
	)

	opts := []orchestration.OrchestratorOption{
		orchestration.WithBaseContext(f.ctx),
		orchestration.WithRecognizer(recognizer),
		orchestration.WithResponseGenerator(generator),
		orchestration.WithInactivityTimeout(f.cfg.ParsedInactivityTimeout()),
		orchestration.WithErrorHandler(f.notices.report),
		orchestration.WithEventHandler(logEvent),
	}

	if f.output != nil {
		speaker, err := tts.NewSpeaker(f.cfg.DeepgramAPIKey, f.output,
			texttospeech.WithVoice(f.cfg.Deepgram.Voice),
			texttospeech.WithErrorCallback(f.notices.report),
		)
		if err != nil {
			return nil, fmt.Errorf("create speaker: %w", err)
		}
		opts = append(opts, orchestration.WithSpeechOutput(speaker))
	}

	return orchestration.NewOrchestrator(opts...), nil
}

func (f *sessionFactory) Close() error {
	f.closeMu.Lock()
	defer f.closeMu.Unlock()
	if f.isClosed {
		return nil
	}
	f.isClosed = true

	var err error
	for i := len(f.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, f.closers[i]())
	}
	return err
}

func logEvent(event events.Event) {
	switch e := event.(type) {
	case events.SessionStateChanged:
		slog.Debug("session state changed", "from", e.From, "to", e.To)
	case events.UserTranscriptFinal:
		slog.Info("user turn", "text", e.Transcript, "synthesized", e.Synthesized)
	case events.AssistantResponseFinal:
		slog.Info("remote turn", "text", e.Response)
	case events.TurnCancelled:
		slog.Info("turn cancelled", "reason", e.Reason)
	}
}

// noticeBoard keeps the latest recoverable error for the status line.
type noticeBoard struct {
	mu   sync.Mutex
	text string
	at   time.Time
}

func (n *noticeBoard) report(err error) {
	if err == nil {
		return
	}
	slog.Error("session error", "error", err)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = err.Error()
	n.at = time.Now()
}

// latest returns the last error if it is younger than maxAge.
func (n *noticeBoard) latest(maxAge time.Duration) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.text == "" || time.Since(n.at) > maxAge {
		return ""
	}
	return n.text
}
