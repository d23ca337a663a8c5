package audio

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

// EncodingInfo describes the raw PCM layout shared between capture devices and
// the transcription/synthesis streams.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func DefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// SilenceValue returns the byte that encodes silence for the format, used when
// padding a live stream during capture gaps.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}
	return 0
}

type Format string

const (
	EncodingMulaw    Format = "mulaw"
	EncodingALaw     Format = "alaw"
	EncodingLinear16 Format = "linear16"
)

func (f Format) Name() string {
	return string(f)
}

// ByteSize returns bytes per sample, or -1 for unknown formats.
func (f Format) ByteSize() int {
	switch f {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}
