package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

var ErrCaptureRunning = errors.New("capture already running")

// AudioInput is the microphone side of the recognizer. It pushes raw frames
// in the recognizer's configured encoding until StopCapture is called.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func([]byte)) error
	StopCapture() error
}

// Recognizer streams microphone audio to the Deepgram live endpoint and turns
// the results into cumulative utterance snapshots. One capture runs at a time.
type Recognizer struct {
	apiKey    string
	listenURL string
	dialer    *websocket.Dialer
	input     AudioInput
	options   speechtotext.RecognizerOptions

	mu     sync.Mutex
	active *capture
}

func NewRecognizer(apiKey string, input AudioInput, opts ...speechtotext.RecognizerOption) *Recognizer {
	options := speechtotext.DefaultRecognizerOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Recognizer{
		apiKey:    apiKey,
		listenURL: defaultListenURL,
		dialer:    websocket.DefaultDialer,
		input:     input,
		options:   options,
	}
}

func (r *Recognizer) StartCapture(ctx context.Context, onSnapshot func(speechtotext.UtteranceSnapshot)) error {
	ctx, span := tracer.Start(ctx, "start capture")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrCaptureRunning
	}

	encoding, err := convertEncoding(r.options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connect(ctx, encoding)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := newCapture(conn, cancel, onSnapshot, r.options)
	go c.readMessages(captureCtx)
	go c.generateSilence(captureCtx, r.options.EncodingInfo)

	if r.input != nil {
		if err := r.input.StartCapture(captureCtx, c.sendAudio); err != nil {
			c.close()
			return fmt.Errorf("failed to start audio input: %w", err)
		}
	}

	r.active = c
	return nil
}

func (r *Recognizer) StopCapture() error {
	r.mu.Lock()
	c := r.active
	r.active = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	var err error
	if r.input != nil {
		if stopErr := r.input.StopCapture(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop audio input: %w", stopErr))
		}
	}
	return errors.Join(err, c.close())
}

// Capturing reports whether a capture is currently running.
func (r *Recognizer) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}
