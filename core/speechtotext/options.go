package speechtotext

import (
	"time"

	"github.com/koscakluka/ema-rehearse/core/audio"
)

const (
	DefaultModel        = "nova-3"
	DefaultLanguage     = "en-US"
	DefaultEndpointing  = 300 * time.Millisecond
	DefaultUtteranceEnd = 1000 * time.Millisecond
)

type RecognizerOptions struct {
	Model    string
	Language string

	// Endpointing is the trailing silence after which the recognizer marks
	// the current utterance as speech final.
	Endpointing  time.Duration
	UtteranceEnd time.Duration

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

func DefaultRecognizerOptions() RecognizerOptions {
	return RecognizerOptions{
		Model:        DefaultModel,
		Language:     DefaultLanguage,
		Endpointing:  DefaultEndpointing,
		UtteranceEnd: DefaultUtteranceEnd,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
}

type RecognizerOption func(*RecognizerOptions)

func WithModel(model string) RecognizerOption {
	return func(o *RecognizerOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) RecognizerOption {
	return func(o *RecognizerOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithEndpointing(endpointing time.Duration) RecognizerOption {
	return func(o *RecognizerOptions) {
		if endpointing > 0 {
			o.Endpointing = endpointing
		}
	}
}

func WithUtteranceEnd(utteranceEnd time.Duration) RecognizerOption {
	return func(o *RecognizerOptions) {
		if utteranceEnd > 0 {
			o.UtteranceEnd = utteranceEnd
		}
	}
}

func WithSpeechStartedCallback(callback func()) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.EncodingInfo = encodingInfo
	}
}
