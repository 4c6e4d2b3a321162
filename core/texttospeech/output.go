package texttospeech

// AudioOutput is the playback side of a speaker.
type AudioOutput interface {
	SendAudio(audio []byte) error
	ClearBuffer()
}

// MarkingAudioOutput calls back once playback reaches the point where the
// mark was placed.
type MarkingAudioOutput interface {
	AudioOutput
	Mark(mark string, callback func(string)) error
}

// AwaitingAudioOutput blocks until everything sent so far has been played.
type AwaitingAudioOutput interface {
	AudioOutput
	AwaitMark() error
}

// Mark places a playback mark on output and calls callback when it is
// reached. Outputs that can only block are waited on in a goroutine, and
// without an output the callback fires immediately.
func Mark(output AudioOutput, mark string, callback func(string)) {
	switch o := output.(type) {
	case MarkingAudioOutput:
		if err := o.Mark(mark, callback); err != nil {
			callback(mark)
		}
	case AwaitingAudioOutput:
		go func() {
			_ = o.AwaitMark()
			callback(mark)
		}()
	default:
		callback(mark)
	}
}
