package synthesis

import "github.com/Omkar-Kubal/voice-cbt/core/audio"

type SpeechOptions struct {
	// SpeechAudioCallback is called for each synthesized audio chunk.
	SpeechAudioCallback func(audio []byte)
	// CompletedCallback is called once when the utterance finished playing in
	// full. It never fires for an utterance that was stopped.
	CompletedCallback func()
	// InterruptedCallback is called once when Stop cut the utterance short.
	InterruptedCallback func()
	// ErrorCallback is called when the synthesis engine fails mid-utterance.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithSpeechAudioCallback(callback func(audio []byte)) SpeechOption {
	return func(o *SpeechOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithCompletedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.CompletedCallback = callback
	}
}

func WithInterruptedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.InterruptedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) SpeechOption {
	return func(o *SpeechOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
