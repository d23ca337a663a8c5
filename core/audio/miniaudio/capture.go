package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// captureClient owns the microphone side. Frames are forwarded to the sink
// installed by Start; between utterances no sink is installed and captured
// frames are dropped at the device callback.
type captureClient struct {
	device *malgo.Device
	config malgo.DeviceConfig

	mu sync.Mutex

	sinkMu sync.Mutex
	sink   func(audio []byte)
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config = captureConfig()
	bytesPerFrame := malgo.SampleSizeInBytes(c.config.Capture.Format) * int(c.config.Capture.Channels)

	device, err := malgo.InitDevice(audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: c.forwardFrames(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	return nil
}

// captureConfig mirrors the transcription stream's encoding: mono linear16 at
// the shared sample rate, with short periods so interim transcripts track
// live speech closely.
func captureConfig() malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(sampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3
	return config
}

func (c *captureClient) forwardFrames(bytesPerFrame int) malgo.DataProc {
	return func(_, pInput []byte, frameCount uint32) {
		n := int(frameCount) * bytesPerFrame
		if n == 0 || len(pInput) < n {
			return
		}

		c.sinkMu.Lock()
		sink := c.sink
		c.sinkMu.Unlock()

		if sink != nil {
			sink(pInput[:n])
		}
	}
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	c.setSink(onAudio)
	if err := c.device.Start(); err != nil {
		c.setSink(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	c.setSink(nil)
	return nil
}

func (c *captureClient) setSink(sink func(audio []byte)) {
	c.sinkMu.Lock()
	c.sink = sink
	c.sinkMu.Unlock()
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.setSink(nil)
	return nil
}
