package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-rehearse/core/audio"
)

const DefaultFramesPerBuffer = 480

// Client captures mono 16-bit PCM from the default PortAudio input device.
type Client struct {
	stream *portaudio.Stream
	in     []int16

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewClient(framesPerBuffer int) (*Client, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, framesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{stream: stream, in: in}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	go c.read(ctx, onAudio, c.stopped)
	return nil
}

func (c *Client) read(ctx context.Context, onAudio func(audio []byte), stopped chan<- struct{}) {
	defer close(stopped)

	audioBuffer := bytes.Buffer{}
	for ctx.Err() == nil {
		if err := c.stream.Read(); err != nil {
			slog.Debug("failed to read from portaudio stream", "error", err)
			continue
		}

		audioBuffer.Reset()
		if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
			continue
		}
		frame := make([]byte, audioBuffer.Len())
		copy(frame, audioBuffer.Bytes())
		onAudio(frame)
	}
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.stopped
	c.cancel = nil
	c.stopped = nil

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *Client) Close() error {
	stopErr := c.StopCapture()
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("failed to close portaudio stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return stopErr
}
