package miniaudio

import "sync"

// playbackBuffer queues audio for the playback callback and tracks marks as
// byte offsets into the queued audio.
type playbackBuffer struct {
	mu    sync.Mutex
	audio []byte
	marks []playbackMark

	silence byte
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func (b *playbackBuffer) write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
}

// mark registers callback to run once everything written so far was read.
func (b *playbackBuffer) mark(name string, callback func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, playbackMark{
		name:     name,
		position: len(b.audio),
		callback: callback,
	})
}

func (b *playbackBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = nil
	b.marks = nil
}

func (b *playbackBuffer) buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.audio)
}

// read fills out with queued audio, padding with silence, and returns the
// marks that playback has now passed. Callers run the marks outside the
// device callback.
func (b *playbackBuffer) read(out []byte) []playbackMark {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(out, b.audio)
	for i := n; i < len(out); i++ {
		out[i] = b.silence
	}
	b.audio = b.audio[n:]
	if len(b.audio) == 0 {
		b.audio = nil
	}

	passed := 0
	for i := range b.marks {
		if b.marks[i].position <= n {
			passed++
			continue
		}
		b.marks[i].position -= n
	}
	if passed == 0 {
		return nil
	}

	reached := b.marks[:passed:passed]
	b.marks = b.marks[passed:]
	return reached
}
