package events

const (
	// KindTranscriptInterimUpdated identifies mutable interim transcript updates.
	KindTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindTranscriptFinal identifies the final transcript for the utterance.
	KindTranscriptFinal Kind = "user_input.transcript_final"
)

// TranscriptInterimUpdated carries the mutable interim transcript snapshot.
type TranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewTranscriptInterimUpdated creates an interim transcript snapshot event.
func NewTranscriptInterimUpdated(transcript string) TranscriptInterimUpdated {
	return TranscriptInterimUpdated{Base: NewBase(KindTranscriptInterimUpdated), Transcript: transcript}
}

// TranscriptFinal carries the final transcript for the utterance.
type TranscriptFinal struct {
	Base
	Transcript string
}

// NewTranscriptFinal creates a final transcript event.
func NewTranscriptFinal(transcript string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Transcript: transcript}
}
