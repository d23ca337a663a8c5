package orchestration

import (
	"context"

	"github.com/Omkar-Kubal/voice-cbt/core/transcription"
)

// speechToText is the STT facade used to normalize optional client wiring.
type speechToText struct {
	client TranscriptionClient
}

func newSpeechToText(client TranscriptionClient) *speechToText {
	return &speechToText{client: client}
}

func (s *speechToText) set(client TranscriptionClient) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechToText) Transcribe(ctx context.Context, opts ...transcription.TranscriptionOption) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.Transcribe(ctx, opts...)
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) Stop() error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.Stop()
}
