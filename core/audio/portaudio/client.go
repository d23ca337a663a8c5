//go:build cgo

package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
)

// Client is an alternative device client backed by PortAudio, for hosts where
// the miniaudio backend is unavailable. It serves capture and playback over a
// single duplex stream.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	capturing atomic.Bool
	writeMu   sync.Mutex

	leftoverAudio []byte
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, audio.NewDeviceError("init", fmt.Errorf("portaudio initialize failed: %w", err))
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, audio.NewDeviceError("capture", fmt.Errorf("failed to open stream: %w", err))
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// StartCapture reads microphone frames until StopCapture or context
// cancellation. Frames are delivered as little-endian linear16 bytes.
func (c *Client) StartCapture(ctx context.Context, onAudio func(audioChunk []byte)) error {
	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		c.capturing.Store(false)
		return audio.NewDeviceError("capture", fmt.Errorf("failed to start stream: %w", err))
	}

	go func() {
		for c.capturing.Load() {
			select {
			case <-ctx.Done():
				c.capturing.Store(false)
				return
			default:
			}

			if err := c.stream.Read(); err != nil {
				log.Printf("Failed to read from PortAudio stream: %v", err)
				continue
			}

			audioBuffer := bytes.Buffer{}
			if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
				log.Printf("Failed to encode captured frames: %v", err)
				continue
			}
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if !c.capturing.CompareAndSwap(true, false) {
		return nil
	}

	if err := c.stream.Stop(); err != nil {
		return audio.NewDeviceError("capture", fmt.Errorf("failed to stop stream: %w", err))
	}
	return nil
}

// SendAudio plays back linear16 audio, buffering any remainder that does not
// fill a whole device period.
func (c *Client) SendAudio(audioChunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	bufferSize := c.bufferSize * 2

	audioChunk = append(c.leftoverAudio, audioChunk...)
	fullPeriods := len(audioChunk) / bufferSize
	for i := range fullPeriods {
		period := audioChunk[i*bufferSize : (i+1)*bufferSize]
		for j := range c.out {
			c.out[j] = int16(binary.LittleEndian.Uint16(period[j*2 : j*2+2]))
		}
		if err := c.stream.Write(); err != nil {
			return audio.NewDeviceError("playback", fmt.Errorf("failed to write stream: %w", err))
		}
	}

	c.leftoverAudio = append(c.leftoverAudio[:0], audioChunk[fullPeriods*bufferSize:]...)
	return nil
}

func (c *Client) ClearBuffer() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.leftoverAudio = nil
}

// WaitUntilDrained is immediate: stream writes are synchronous, so everything
// handed to SendAudio has already played apart from the sub-period remainder.
func (c *Client) WaitUntilDrained(context.Context) error { return nil }

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.DefaultEncodingInfo()
}
