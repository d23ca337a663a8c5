package orchestration

import (
	"context"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
	"github.com/Omkar-Kubal/voice-cbt/core/responder"
	"github.com/Omkar-Kubal/voice-cbt/core/store"
	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
	"github.com/Omkar-Kubal/voice-cbt/core/transcription"
)

type SessionOption func(*SessionController)

// TranscriptionClient is the contract a speech-to-text engine adapter
// implements. Only one stream may be open at a time per controller; starting
// while active is rejected with [transcription.ErrAlreadyActive].
type TranscriptionClient interface {
	Transcribe(ctx context.Context, opts ...transcription.TranscriptionOption) error
	SendAudio(audio []byte) error
	Stop() error
}

func WithTranscriptionClient(client TranscriptionClient) SessionOption {
	return func(s *SessionController) {
		s.speechToText.set(client)
	}
}

// SynthesisClient is the contract a text-to-speech engine adapter implements.
// Stop must suppress the completion callback for the interrupted utterance.
type SynthesisClient interface {
	Speak(ctx context.Context, text string, params synthesis.VoiceParams, opts ...synthesis.SpeechOption) error
	Stop() error
}

func WithSynthesisClient(client SynthesisClient) SessionOption {
	return func(s *SessionController) {
		s.speech.set(client)
	}
}

// Responder is the opaque backend that turns conversational text into a reply
// plus optional emotion classification.
type Responder interface {
	Send(ctx context.Context, text string) (*responder.Reply, error)
	Health(ctx context.Context) error
}

func WithResponder(client Responder) SessionOption {
	return func(s *SessionController) {
		s.responder = client
	}
}

func WithStore(conversationStore store.Store) SessionOption {
	return func(s *SessionController) {
		s.store = conversationStore
	}
}

// AudioDevice owns the capture device and the synthesis output channel for
// the session's lifetime. Only one side is hot at a time.
type AudioDevice interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	SendAudio(audio []byte) error
	ClearBuffer()
	WaitUntilDrained(ctx context.Context) error
	EncodingInfo() audio.EncodingInfo
}

func WithAudioDevice(device AudioDevice) SessionOption {
	return func(s *SessionController) {
		s.device = device
	}
}

func WithUserID(userID string) SessionOption {
	return func(s *SessionController) {
		s.userID = userID
	}
}

func WithGreetingPolicy(policy GreetingPolicy) SessionOption {
	return func(s *SessionController) {
		s.greeting = policy
	}
}

// WithPreferredVoiceParams overrides the neutral baseline used when a reply
// carries no emotion tag.
func WithPreferredVoiceParams(params synthesis.VoiceParams) SessionOption {
	return func(s *SessionController) {
		s.neutralParams = params
	}
}

type RunOptions struct {
	onPhaseChanged      func(previous, current Phase)
	onTranscript        func(transcript string)
	onMessage           func(message conversations.Message)
	onError             func(sessionError SessionError)
	onConnectionChanged func(connection Connection)
}

type RunOption func(*RunOptions)

// WithPhaseChangedCallback registers a callback for controller phase
// transitions.
func WithPhaseChangedCallback(callback func(previous, current Phase)) RunOption {
	return func(o *RunOptions) {
		o.onPhaseChanged = callback
	}
}

// WithTranscriptCallback registers a callback for interim transcript buffer
// updates. An empty transcript means the buffer was cleared.
func WithTranscriptCallback(callback func(transcript string)) RunOption {
	return func(o *RunOptions) {
		o.onTranscript = callback
	}
}

// WithMessageCallback registers a callback for messages appended to the
// conversation log.
func WithMessageCallback(callback func(message conversations.Message)) RunOption {
	return func(o *RunOptions) {
		o.onMessage = callback
	}
}

// WithErrorCallback registers a callback for user-visible failures, including
// non-blocking storage warnings.
func WithErrorCallback(callback func(sessionError SessionError)) RunOption {
	return func(o *RunOptions) {
		o.onError = callback
	}
}

// WithConnectionChangedCallback registers a callback for responder
// connectivity changes.
func WithConnectionChangedCallback(callback func(connection Connection)) RunOption {
	return func(o *RunOptions) {
		o.onConnectionChanged = callback
	}
}
