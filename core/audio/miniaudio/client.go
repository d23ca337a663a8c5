package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
)

const sampleRate = 48000

// Client owns one capture and one playback device on the default backend.
// Capture and playback are mutually exclusive in the session state machine, so
// a single shared context is enough.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, audio.NewDeviceError("init", fmt.Errorf("malgo context init failed: %w", err))
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, audio.NewDeviceError("playback", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, audio.NewDeviceError("playback", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, audio.NewDeviceError("capture", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	if err := c.captureClient.Start(onAudio); err != nil {
		return audio.NewDeviceError("capture", err)
	}
	return nil
}

func (c *Client) StopCapture() error {
	if err := c.captureClient.Stop(); err != nil {
		return audio.NewDeviceError("capture", err)
	}
	return nil
}

func (c *Client) SendAudio(audioChunk []byte) error {
	return c.playbackClient.SendAudio(audioChunk)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

// WaitUntilDrained blocks until queued playback audio has been handed to the
// device, or the context is cancelled.
func (c *Client) WaitUntilDrained(ctx context.Context) error {
	return c.playbackClient.WaitUntilDrained(ctx)
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: sampleRate,
		Format:     audio.EncodingLinear16,
	}
}
