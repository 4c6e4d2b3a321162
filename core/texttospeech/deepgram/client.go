package deepgram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-rehearse/core/audio"
	"github.com/koscakluka/ema-rehearse/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

var errUnsupportedEncoding = errors.New("unsupported encoding")

// Speaker synthesizes replies on the Deepgram speak websocket and plays them
// on an audio output. Each Speak opens its own connection and interrupts the
// utterance before it.
type Speaker struct {
	apiKey   string
	speakURL string
	dialer   *websocket.Dialer
	output   texttospeech.AudioOutput
	options  texttospeech.SpeakerOptions

	mu      sync.Mutex
	current *utterance
}

func NewSpeaker(apiKey string, output texttospeech.AudioOutput, opts ...texttospeech.SpeakerOption) (*Speaker, error) {
	options := texttospeech.DefaultSpeakerOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if !isAvailableVoice(options.Voice) {
		return nil, fmt.Errorf("invalid voice %q", options.Voice)
	}
	if err := checkEncoding(options.EncodingInfo); err != nil {
		return nil, err
	}

	return &Speaker{
		apiKey:   apiKey,
		speakURL: defaultSpeakURL,
		dialer:   websocket.DefaultDialer,
		output:   output,
		options:  options,
	}, nil
}

// Speak starts synthesizing text and returns once the text has been sent.
// onComplete is called after the audio has been played back, or right away
// when there is nothing to say. It is not called for utterances cut short by
// Stop.
func (s *Speaker) Speak(ctx context.Context, text string, onComplete func()) error {
	ctx, span := tracer.Start(ctx, "speak", trace.WithAttributes(
		attribute.Int("speech.text_length", len(text)),
	))
	defer span.End()

	if onComplete == nil {
		onComplete = func() {}
	}
	if strings.TrimSpace(text) == "" {
		onComplete()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		_ = s.current.stop()
		s.current = nil
		s.clearOutput()
	}

	conn, err := s.connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to connect")
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	u := newUtterance(conn, text, s.output, s.options, onComplete)
	go u.readMessages()

	if err := u.send(speakMessage{Type: "Speak", Text: text}); err != nil {
		_ = u.close()
		return fmt.Errorf("failed to send text: %w", err)
	}
	if err := u.send(controlMessage{Type: "Flush"}); err != nil {
		_ = u.close()
		return fmt.Errorf("failed to flush text: %w", err)
	}

	s.current = u
	return nil
}

// Stop cuts off the current utterance and drops any audio not yet played.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	u := s.current
	s.current = nil
	s.mu.Unlock()

	s.clearOutput()
	if u == nil {
		return nil
	}
	return u.stop()
}

// Speaking reports whether an utterance is still being synthesized or played.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.finished.Load()
}

func (s *Speaker) Close() error {
	return s.Stop()
}

func (s *Speaker) clearOutput() {
	if s.output != nil {
		s.output.ClearBuffer()
	}
}

func checkEncoding(encoding audio.EncodingInfo) error {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return nil
		}
	case audio.EncodingMulaw, audio.EncodingALaw:
		switch encoding.SampleRate {
		case 8000, 16000:
			return nil
		}
	default:
		return fmt.Errorf("%w: format %q", errUnsupportedEncoding, encoding.Format.Name())
	}
	return fmt.Errorf("%w: %s at %dHz", errUnsupportedEncoding, encoding.Format.Name(), encoding.SampleRate)
}
