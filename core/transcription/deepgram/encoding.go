package deepgram

import (
	"fmt"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
)

type deepgramEncoding struct {
	SampleRate int
	Format     string
}

// convertEncoding validates the capture encoding against what the listen
// endpoint accepts. The companded formats are only defined at 8kHz.
func convertEncoding(encoding audio.EncodingInfo) (*deepgramEncoding, error) {
	converted := deepgramEncoding{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		converted.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("unsupported sample rate")
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		converted.Format = "linear16"
	case audio.EncodingALaw:
		converted.Format = "alaw"
		if converted.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for alaw encoding")
		}
	case audio.EncodingMulaw:
		converted.Format = "mulaw"
		if converted.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for mulaw encoding")
		}
	default:
		return nil, fmt.Errorf("unsupported encoding")
	}

	return &converted, nil
}
