package transcription

import "github.com/Omkar-Kubal/voice-cbt/core/audio"

type TranscriptionOptions struct {
	// InterimTranscriptionCallback receives mutable, non-committing transcript
	// snapshots while the utterance is still in progress.
	InterimTranscriptionCallback func(transcript string)
	// TranscriptionCallback receives the final transcript for the utterance.
	TranscriptionCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// ErrorCallback receives recognition failures. Errors are classified with
	// [FaultOf] for differentiated messaging.
	ErrorCallback func(err error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
