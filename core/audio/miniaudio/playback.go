package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-rehearse/core/audio"
)

type playbackClient struct {
	device *malgo.Device
	buffer playbackBuffer

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	c.buffer.silence = audio.GetDefaultEncodingInfo().SilenceValue()

	device, err := malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.device = device
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil && c.device.IsStarted()
}

func (c *playbackClient) SendAudio(audio []byte) error {
	if !c.started() {
		return fmt.Errorf("device not started")
	}

	c.buffer.write(audio)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.buffer.clear()
}

func (c *playbackClient) Mark(mark string, callback func(string)) error {
	if !c.started() {
		return fmt.Errorf("device not started")
	}

	c.buffer.mark(mark, callback)
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	c.buffer.clear()
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := min(int(frameCount)*bytesPerFrame, len(pOutput))
		reached := c.buffer.read(pOutput[:need])
		if len(reached) == 0 {
			return
		}

		go func() {
			for _, mark := range reached {
				mark.callback(mark.name)
			}
		}()
	}
}
