package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
)

// speech is the synthesis facade. It owns the single-utterance guarantee: a
// speak request arriving while one is in flight is coalesced into a no-op so
// audio never overlaps.
type speech struct {
	client SynthesisClient

	inFlight atomic.Bool
}

func newSpeech(client SynthesisClient) *speech {
	return &speech{client: client}
}

func (s *speech) set(client SynthesisClient) {
	if s != nil {
		s.client = client
	}
}

func (s *speech) isConfigured() bool {
	return s != nil && s.client != nil
}

// speakAndWait synthesizes one utterance through the device and blocks until
// playback completed, was interrupted, failed, or the context was cancelled.
// Interruption and cancellation are not errors; only engine faults are.
func (s *speech) speakAndWait(ctx context.Context, device AudioDevice, text string, params synthesis.VoiceParams) error {
	if !s.isConfigured() {
		return nil
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	completed := make(chan struct{})
	interrupted := make(chan struct{})
	errCh := make(chan error, 1)

	opts := []synthesis.SpeechOption{
		synthesis.WithCompletedCallback(func() { close(completed) }),
		synthesis.WithInterruptedCallback(func() { close(interrupted) }),
		synthesis.WithErrorCallback(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	}
	if device != nil {
		opts = append(opts,
			synthesis.WithSpeechAudioCallback(func(audio []byte) {
				if err := device.SendAudio(audio); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}),
			synthesis.WithEncodingInfo(device.EncodingInfo()),
		)
	}

	if err := s.client.Speak(ctx, text, params, opts...); err != nil {
		return fmt.Errorf("failed to start synthesis: %w", err)
	}

	select {
	case <-completed:
		if device != nil {
			if err := device.WaitUntilDrained(ctx); err != nil {
				return nil // cancelled mid-drain, buffer already cleared
			}
		}
		return nil
	case <-interrupted:
		if device != nil {
			device.ClearBuffer()
		}
		return nil
	case err := <-errCh:
		if device != nil {
			device.ClearBuffer()
		}
		return fmt.Errorf("synthesis failed: %w", err)
	case <-ctx.Done():
		_ = s.client.Stop()
		if device != nil {
			device.ClearBuffer()
		}
		return nil
	}
}

// Stop cancels the in-flight utterance, if any.
func (s *speech) Stop() error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.Stop()
}
