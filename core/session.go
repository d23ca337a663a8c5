package orchestration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jinzhu/copier"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
	"github.com/Omkar-Kubal/voice-cbt/core/events"
	"github.com/Omkar-Kubal/voice-cbt/core/store"
	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
)

// SessionController is the single authority over session state. It is the
// only component that invokes the transcription, synthesis and responder
// clients and the store; the leaf components only report results back to it.
type SessionController struct {
	mu sync.RWMutex

	phase             Phase
	inputMode         InputMode
	pendingTranscript string
	connection        Connection
	lastError         *SessionError
	messages          []conversations.Message

	userID   string
	greeting GreetingPolicy

	// speechToText is the STT facade used to handle optional client wiring.
	speechToText *speechToText
	// speech is the synthesis facade that also guards against overlapping audio.
	speech        *speech
	responder     Responder
	store         store.Store
	device        AudioDevice
	neutralParams synthesis.VoiceParams

	// generation tags in-flight async work; stale results are discarded
	// unconditionally.
	generation atomic.Uint64

	queue   chan queuedCommand
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	// turnCancel aborts the in-flight turn; guarded separately because Cancel
	// runs off the loop goroutine.
	turnCancelMu sync.Mutex
	turnCancel   context.CancelFunc

	probing              atomic.Bool
	probeInitialInterval time.Duration
	probeMaxInterval     time.Duration

	emitEvent   eventEmitter
	baseContext context.Context
}

func NewSessionController(opts ...SessionOption) *SessionController {
	s := &SessionController{
		phase:         PhaseIdle,
		inputMode:     InputModeVoice,
		connection:    ConnectionConnected,
		greeting:      CalendarDayGreeting(),
		neutralParams: synthesis.NeutralParams(),
		queue:         make(chan queuedCommand, commandQueueCapacity),
		closeCh:       make(chan struct{}),
		done:          make(chan struct{}),
		emitEvent:     noopEventEmitter,
		baseContext:   context.Background(),

		probeInitialInterval: healthProbeInitialInterval,
		probeMaxInterval:     healthProbeMaxInterval,
	}
	s.speechToText = newSpeechToText(nil)
	s.speech = newSpeech(nil)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run loads the conversation, installs the UI callbacks and starts the
// single-threaded command loop.
//
// Contract: call Run at most once per controller instance.
func (s *SessionController) Run(ctx context.Context, opts ...RunOption) {
	if s.isClosed() {
		logger.Warn("session controller already closed, skipping Run")
		return
	}

	runOptions := RunOptions{}
	for _, opt := range opts {
		opt(&runOptions)
	}

	s.startOnce.Do(func() {
		s.baseContext = ctx
		s.emitEvent = newCallbackEventEmitter(runOptions)
		s.started.Store(true)

		s.loadConversation(ctx)

		go func() {
			defer close(s.done)

			for {
				select {
				case <-s.closeCh:
					return
				case command := <-s.queue:
					if s.isClosed() {
						return
					}
					s.processCommand(command)
				}
			}
		}()

		go func() {
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.closeCh:
			}
		}()
	})
}

// Close shuts the controller down: capture is released, in-flight work is
// cancelled and the command loop drains.
func (s *SessionController) Close() {
	s.closeOnce.Do(func() {
		s.generation.Add(1)
		s.cancelActiveTurn()
		_ = s.speech.Stop()
		_ = s.speechToText.Stop()
		s.stopCapture()

		close(s.closeCh)
		if s.started.Load() {
			<-s.done
		}
	})
}

// StartVoice requests the idle-to-capturing transition. Failures to open the
// device or the transcription stream are surfaced through the error callback
// and return the controller to idle, so starting again or typing is always
// possible.
func (s *SessionController) StartVoice() {
	s.enqueue(startVoiceCommand{})
}

// StopVoice ends capture. A final transcript that has not yet arrived is
// discarded; no message is appended.
func (s *SessionController) StopVoice() {
	s.enqueue(stopVoiceCommand{})
}

// SendText submits a typed user turn, bypassing capture and transcription.
// Text that trims to empty is ignored.
func (s *SessionController) SendText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.enqueue(textCommand{text: strings.TrimSpace(text)})
}

// Cancel aborts whatever the session is doing and returns it to idle.
// Cancelling an idle session is a no-op with no error and no state change.
func (s *SessionController) Cancel() {
	if s.Phase() == PhaseIdle {
		return
	}

	// Bump the generation first so every in-flight result goes stale, then
	// unblock the loop if it is waiting on a reply or playback.
	s.generation.Add(1)
	s.cancelActiveTurn()
	_ = s.speech.Stop()

	s.enqueue(cancelCommand{})
}

// ClearConversation removes the user's persisted log and the in-memory copy.
func (s *SessionController) ClearConversation() {
	s.enqueue(clearCommand{})
}

// Snapshot returns a point-in-time copy of the session state.
type Snapshot struct {
	Phase             Phase
	InputMode         InputMode
	PendingTranscript string
	Connection        Connection
	LastError         *SessionError
	Messages          []conversations.Message
}

func (s *SessionController) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []conversations.Message
	_ = copier.Copy(&messages, &s.messages)

	var lastError *SessionError
	if s.lastError != nil {
		errCopy := *s.lastError
		lastError = &errCopy
	}

	return Snapshot{
		Phase:             s.phase,
		InputMode:         s.inputMode,
		PendingTranscript: s.pendingTranscript,
		Connection:        s.connection,
		LastError:         lastError,
		Messages:          messages,
	}
}

func (s *SessionController) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *SessionController) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

func (s *SessionController) cancelActiveTurn() {
	s.turnCancelMu.Lock()
	defer s.turnCancelMu.Unlock()

	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
}

func (s *SessionController) setActiveTurnCancel(cancel context.CancelFunc) {
	s.turnCancelMu.Lock()
	defer s.turnCancelMu.Unlock()
	s.turnCancel = cancel
}

func (s *SessionController) loadConversation(ctx context.Context) {
	if s.store == nil {
		s.mu.Lock()
		s.messages = s.greeting.apply(nil, time.Now())
		s.mu.Unlock()
		return
	}

	log, err := s.store.Load(ctx, s.userID)
	if err != nil {
		logger.Warn("failed to load conversation, starting empty", "error", err)
		s.surfaceError(ErrorKindStorage, "Your conversation history could not be loaded.")
		log = nil
	}

	log = s.greeting.apply(log, time.Now())

	s.mu.Lock()
	s.messages = log
	s.mu.Unlock()
}

func (s *SessionController) setPhase(phase Phase) {
	s.mu.Lock()
	previous := s.phase
	s.phase = phase
	s.mu.Unlock()

	if previous != phase {
		s.emitEvent(events.NewPhaseChanged(string(previous), string(phase)))
	}
}

func (s *SessionController) setConnection(connection Connection) {
	s.mu.Lock()
	previous := s.connection
	s.connection = connection
	s.mu.Unlock()

	if previous != connection {
		s.emitEvent(events.NewConnectionChanged(string(connection)))
	}
}

func (s *SessionController) setPendingTranscript(transcript string) {
	s.mu.Lock()
	s.pendingTranscript = transcript
	s.mu.Unlock()

	s.emitEvent(events.NewTranscriptInterimUpdated(transcript))
}

func (s *SessionController) clearLastError() {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
}

func (s *SessionController) surfaceError(kind, message string) {
	s.mu.Lock()
	s.lastError = &SessionError{Kind: kind, Message: message}
	s.mu.Unlock()

	s.emitEvent(events.NewErrorSurfaced(kind, message))
}

// appendMessage adds a message to the in-memory log and persists it.
// Persistence failures are logged and surfaced as a passive warning; they
// never interrupt the conversational flow.
func (s *SessionController) appendMessage(ctx context.Context, message conversations.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.emitEvent(events.NewMessageAppended(message))

	if s.store == nil {
		return
	}

	if err := s.store.Append(ctx, s.userID, message); err != nil {
		logger.Warn("failed to persist message", "error", err, "message_id", message.ID)
		s.surfaceError(ErrorKindStorage, "Your last message could not be saved.")
	}
}

func (s *SessionController) stopCapture() {
	if s.device == nil {
		return
	}
	if err := s.device.StopCapture(); err != nil {
		logger.Warn("failed to stop capture device", "error", err)
	}
}
