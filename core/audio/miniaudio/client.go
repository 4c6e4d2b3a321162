package miniaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-rehearse/core/audio"
)

// Client owns one malgo context with a capture and a playback device, both
// running mono 16-bit PCM at the default sample rate.
type Client struct {
	// audioContext is only saved to be able to uninitialize it
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playbackClient.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

func (c *Client) Mark(mark string, callback func(string)) error {
	return c.playbackClient.Mark(mark, callback)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *Client) Close() error {
	err := errors.Join(c.captureClient.Uninit(), c.playbackClient.Uninit())
	if c.audioContext != nil {
		if uninitErr := c.audioContext.Uninit(); uninitErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to uninitialize audio context: %w", uninitErr))
		}
		c.audioContext.Free()
		c.audioContext = nil
	}
	return err
}
