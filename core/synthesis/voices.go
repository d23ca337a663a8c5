package synthesis

import "slices"

// fallbackVoices is the deterministic preference order tried when the
// configured voice is not offered by the engine.
var fallbackVoices = []string{
	"aura-2-thalia-en",
	"aura-asteria-en",
	"aura-luna-en",
}

// defaultPitchAdjust compensates for the engine default voice sitting lower
// than the tuned preference list.
const defaultPitchAdjust = 1.05

// VoiceSelection is the outcome of voice resolution. An empty Voice means the
// engine default is used with PitchAdjust applied as compensation.
type VoiceSelection struct {
	Voice       string
	PitchAdjust float64
}

// SelectVoice resolves the voice to synthesize with. Resolution is total: a
// preferred voice that the engine offers wins, otherwise the first available
// entry of the fallback preference list, otherwise the engine default with
// adjusted pitch. Absence of a preferred voice is not a failure condition.
func SelectVoice(preferred string, available []string) VoiceSelection {
	if preferred != "" && slices.Contains(available, preferred) {
		return VoiceSelection{Voice: preferred, PitchAdjust: 1.0}
	}

	for _, voice := range fallbackVoices {
		if slices.Contains(available, voice) {
			return VoiceSelection{Voice: voice, PitchAdjust: 1.0}
		}
	}

	return VoiceSelection{Voice: "", PitchAdjust: defaultPitchAdjust}
}
