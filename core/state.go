package orchestration

// Phase is the controller's position in the turn state machine. Transitions
// are strictly sequential per turn; no two turns interleave.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseCapturing     Phase = "capturing"
	PhaseTranscribing  Phase = "transcribing"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseSpeaking      Phase = "speaking"
	PhaseError         Phase = "error"
)

// InputMode selects how user turns enter the session. The modes are mutually
// exclusive; switching to text is always available as a fallback.
type InputMode string

const (
	InputModeVoice InputMode = "voice"
	InputModeText  InputMode = "text"
)

// Connection is the health of the responder's backing channel.
type Connection string

const (
	ConnectionConnected    Connection = "connected"
	ConnectionConnecting   Connection = "connecting"
	ConnectionDisconnected Connection = "disconnected"
)

// Error kinds surfaced to the presentation layer.
const (
	ErrorKindDevice      = "DeviceError"
	ErrorKindRecognition = "RecognitionError"
	ErrorKindSynthesis   = "SynthesisError"
	ErrorKindStorage     = "StorageError"
)

// SessionError is the structured failure exposed through snapshots and the
// error event. Cleared on the next successful operation.
type SessionError struct {
	Kind    string
	Message string
}
