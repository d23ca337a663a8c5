package transcription

import (
	"errors"
	"fmt"
)

// ErrAlreadyActive is returned when a transcription stream is started while
// another one is still open on the same client.
var ErrAlreadyActive = errors.New("transcription stream already active")

// Fault classifies recognition failures for differentiated messaging. All
// faults terminate the current utterance the same way; the classification only
// changes what the user is told.
type Fault string

const (
	FaultNetwork    Fault = "network"
	FaultPermission Fault = "permission"
	FaultNoSpeech   Fault = "no_speech"
	FaultOther      Fault = "other"
)

// RecognitionError wraps a transcription engine failure with its fault class.
type RecognitionError struct {
	Fault Fault
	Err   error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition failed (%s)", e.Fault)
	}
	return fmt.Sprintf("recognition failed (%s): %v", e.Fault, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// NewRecognitionError wraps err with the given fault class.
func NewRecognitionError(fault Fault, err error) *RecognitionError {
	return &RecognitionError{Fault: fault, Err: err}
}

// FaultOf extracts the fault class from an error, defaulting to FaultOther for
// errors that did not originate in a transcription engine.
func FaultOf(err error) Fault {
	var recognitionErr *RecognitionError
	if errors.As(err, &recognitionErr) {
		return recognitionErr.Fault
	}
	return FaultOther
}
