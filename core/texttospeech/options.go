package texttospeech

import (
	"time"

	"github.com/koscakluka/ema-rehearse/core/audio"
)

const DefaultVoice = "aura-2-thalia-en"

type SpeakerOptions struct {
	Voice        string
	EncodingInfo audio.EncodingInfo

	// SpeechAudioCallback is called with every chunk of synthesized audio
	// before it is handed to the audio output.
	SpeechAudioCallback func(audio []byte)
	// SpeechEndedCallback is called once per utterance, after playback of the
	// last chunk or after the utterance was stopped.
	SpeechEndedCallback func(SpeechEndedReport)
	// ErrorCallback is called when the synthesizer connection fails after
	// Speak has returned.
	ErrorCallback func(error)
}

type SpeakerOption func(*SpeakerOptions)

func DefaultSpeakerOptions() SpeakerOptions {
	return SpeakerOptions{
		Voice:               DefaultVoice,
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
		SpeechAudioCallback: func([]byte) {},
		SpeechEndedCallback: func(SpeechEndedReport) {},
		ErrorCallback:       func(error) {},
	}
}

func WithVoice(voice string) SpeakerOption {
	return func(o *SpeakerOptions) {
		if voice == "" {
			return
		}
		o.Voice = voice
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeakerOption {
	return func(o *SpeakerOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

func WithSpeechAudioCallback(callback func([]byte)) SpeakerOption {
	return func(o *SpeakerOptions) {
		if callback != nil {
			o.SpeechAudioCallback = callback
		}
	}
}

func WithSpeechEndedCallback(callback func(SpeechEndedReport)) SpeakerOption {
	return func(o *SpeakerOptions) {
		if callback != nil {
			o.SpeechEndedCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) SpeakerOption {
	return func(o *SpeakerOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

type SpeechEndedReport struct {
	Text string
	// Audio is the playback length of everything synthesized for the text.
	Audio       time.Duration
	Interrupted bool
}
