package events

const (
	// KindPhaseChanged identifies controller phase transitions.
	KindPhaseChanged Kind = "session.phase_changed"
	// KindConnectionChanged identifies responder connectivity changes.
	KindConnectionChanged Kind = "session.connection_changed"
	// KindErrorSurfaced identifies user-visible failures.
	KindErrorSurfaced Kind = "session.error_surfaced"
)

// PhaseChanged marks a controller phase transition.
type PhaseChanged struct {
	Base
	Previous string
	Current  string
}

// NewPhaseChanged creates a phase transition event.
func NewPhaseChanged(previous, current string) PhaseChanged {
	return PhaseChanged{Base: NewBase(KindPhaseChanged), Previous: previous, Current: current}
}

// ConnectionChanged marks a change of the responder channel health.
type ConnectionChanged struct {
	Base
	Connection string
}

// NewConnectionChanged creates a connection health event.
func NewConnectionChanged(connection string) ConnectionChanged {
	return ConnectionChanged{Base: NewBase(KindConnectionChanged), Connection: connection}
}

// ErrorSurfaced carries a failure a presentation layer should show.
type ErrorSurfaced struct {
	Base
	ErrorKind string
	Message   string
}

// NewErrorSurfaced creates a user-visible error event.
func NewErrorSurfaced(errorKind, message string) ErrorSurfaced {
	return ErrorSurfaced{Base: NewBase(KindErrorSurfaced), ErrorKind: errorKind, Message: message}
}
