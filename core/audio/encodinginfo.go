package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

// EncodingInfo describes mono PCM audio moving between the capture device,
// the recognizer, the synthesizer and the playback device.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

// BytesFor returns how many bytes hold d worth of audio, or 0 for unknown
// formats.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate <= 0 {
		return 0
	}
	return int(int64(e.SampleRate) * int64(size) * d.Milliseconds() / 1000)
}

// Duration returns the playback length of n bytes.
func (e EncodingInfo) Duration(n int) time.Duration {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate <= 0 {
		return 0
	}
	samples := n / size
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
