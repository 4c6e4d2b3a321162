package miniaudio

import "testing"

func TestReadPadsWithSilence(t *testing.T) {
	b := playbackBuffer{silence: 0x55}
	b.write([]byte{1, 2})

	out := make([]byte, 4)
	b.read(out)

	want := []byte{1, 2, 0x55, 0x55}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
	if b.buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", b.buffered())
	}
}

func TestMarksFireWhenPlaybackPassesThem(t *testing.T) {
	b := playbackBuffer{}
	var reached []string
	callback := func(name string) { reached = append(reached, name) }

	b.write(make([]byte, 6))
	b.mark("first", callback)
	b.write(make([]byte, 6))
	b.mark("second", callback)

	out := make([]byte, 4)
	if marks := b.read(out); len(marks) != 0 {
		t.Fatalf("expected no marks after 4 bytes, got %d", len(marks))
	}

	for _, mark := range b.read(out) {
		mark.callback(mark.name)
	}
	if len(reached) != 1 || reached[0] != "first" {
		t.Fatalf("expected first mark after 8 bytes, got %v", reached)
	}

	for _, mark := range b.read(out) {
		mark.callback(mark.name)
	}
	if len(reached) != 2 || reached[1] != "second" {
		t.Fatalf("expected second mark after 12 bytes, got %v", reached)
	}
}

func TestMarkOnEmptyBufferFiresOnNextRead(t *testing.T) {
	b := playbackBuffer{}
	b.mark("end", func(string) {})

	if marks := b.read(make([]byte, 2)); len(marks) != 1 {
		t.Fatalf("expected mark to fire on next read, got %d", len(marks))
	}
}

func TestClearDropsAudioAndMarks(t *testing.T) {
	b := playbackBuffer{}
	b.write(make([]byte, 10))
	b.mark("end", func(string) {})
	b.clear()

	if marks := b.read(make([]byte, 20)); len(marks) != 0 {
		t.Fatalf("expected cleared marks not to fire, got %d", len(marks))
	}
	if b.buffered() != 0 {
		t.Fatalf("expected empty buffer after clear")
	}
}
