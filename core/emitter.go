package orchestration

import "github.com/Omkar-Kubal/voice-cbt/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts RunOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.PhaseChanged:
			if opts.onPhaseChanged != nil {
				opts.onPhaseChanged(Phase(typedEvent.Previous), Phase(typedEvent.Current))
			}
		case events.TranscriptInterimUpdated:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Transcript)
			}
		case events.MessageAppended:
			if opts.onMessage != nil {
				opts.onMessage(typedEvent.Message)
			}
		case events.ErrorSurfaced:
			if opts.onError != nil {
				opts.onError(SessionError{Kind: typedEvent.ErrorKind, Message: typedEvent.Message})
			}
		case events.ConnectionChanged:
			if opts.onConnectionChanged != nil {
				opts.onConnectionChanged(Connection(typedEvent.Connection))
			}
		}
	}
}
