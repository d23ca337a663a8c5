package synthesis

// VoiceParams are the delivery parameters for one spoken utterance. Rate is
// words per minute, Pitch is a multiplier around 1.0, Volume is 0.0 to 1.0.
type VoiceParams struct {
	Rate   int
	Pitch  float64
	Volume float64
}

// NeutralParams is the baseline delivery used when no emotion tag applies.
func NeutralParams() VoiceParams {
	return VoiceParams{Rate: 180, Pitch: 1.0, Volume: 0.9}
}

var emotionParams = map[string]VoiceParams{
	"sad":     {Rate: 150, Pitch: 0.9, Volume: 0.8},
	"angry":   {Rate: 160, Pitch: 0.8, Volume: 0.7},
	"anxious": {Rate: 170, Pitch: 1.0, Volume: 0.85},
	"happy":   {Rate: 200, Pitch: 1.1, Volume: 0.95},
	"neutral": {Rate: 180, Pitch: 1.0, Volume: 0.9},
}

// Emotion classifiers label with several synonyms for the tuned set.
var emotionAliases = map[string]string{
	"sadness":     "sad",
	"anger":       "angry",
	"frustration": "angry",
	"fear":        "anxious",
	"happiness":   "happy",
	"excitement":  "happy",
}

// ParamsForEmotion maps an emotion tag to delivery parameters. The mapping is
// total: every known tag yields its tuned tuple and anything else, including
// an absent tag, yields the neutral baseline.
func ParamsForEmotion(tag string) VoiceParams {
	if alias, ok := emotionAliases[tag]; ok {
		tag = alias
	}
	if params, ok := emotionParams[tag]; ok {
		return params
	}
	return NeutralParams()
}
