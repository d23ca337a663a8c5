package orchestration

import (
	"fmt"
	"strings"

	"github.com/Omkar-Kubal/voice-cbt/core/events"
	"github.com/Omkar-Kubal/voice-cbt/core/transcription"
)

const commandQueueCapacity = 100

// command is a unit of work for the controller loop. Commands execute on a
// single goroutine, so no two turns ever interleave.
type command interface {
	execute(s *SessionController)
}

type queuedCommand struct {
	// generation the producer observed when the command was created. The loop
	// discards commands whose generation is no longer current.
	generation uint64
	op         command
}

func (s *SessionController) enqueue(op command) {
	s.enqueueForGeneration(s.generation.Load(), op)
}

func (s *SessionController) enqueueForGeneration(generation uint64, op command) {
	if s.isClosed() {
		return
	}

	select {
	case s.queue <- queuedCommand{generation: generation, op: op}:
	case <-s.closeCh:
	}
}

func (s *SessionController) processCommand(cmd queuedCommand) {
	if cmd.generation != s.generation.Load() {
		logger.Debug("discarding stale command",
			"command", fmt.Sprintf("%T", cmd.op),
			"generation", cmd.generation,
			"current_generation", s.generation.Load(),
		)
		return
	}

	cmd.op.execute(s)
}

type startVoiceCommand struct{}

func (startVoiceCommand) execute(s *SessionController) {
	if s.Phase() != PhaseIdle {
		logger.Debug("ignoring voice start outside of idle", "phase", s.Phase())
		return
	}

	if !s.speechToText.isConfigured() || s.device == nil {
		s.failVoiceStart(ErrorKindDevice, "Voice input is not available. You can type your message instead.")
		return
	}

	s.mu.Lock()
	s.inputMode = InputModeVoice
	s.mu.Unlock()

	generation := s.generation.Load()

	err := s.speechToText.Transcribe(s.baseContext,
		transcription.WithEncodingInfo(s.device.EncodingInfo()),
		transcription.WithInterimTranscriptionCallback(func(transcript string) {
			s.enqueueForGeneration(generation, interimTranscriptCommand{transcript: transcript})
		}),
		transcription.WithSpeechEndedCallback(func() {
			s.enqueueForGeneration(generation, speechEndedCommand{})
		}),
		transcription.WithTranscriptionCallback(func(transcript string) {
			s.enqueueForGeneration(generation, finalTranscriptCommand{transcript: transcript})
		}),
		transcription.WithErrorCallback(func(err error) {
			s.enqueueForGeneration(generation, recognitionErrorCommand{err: err})
		}),
	)
	if err != nil {
		s.failVoiceStart(ErrorKindRecognition, "Speech recognition could not be started. You can type your message instead.")
		return
	}

	err = s.device.StartCapture(s.baseContext, func(audio []byte) {
		if err := s.speechToText.SendAudio(audio); err != nil {
			logger.Warn("failed to forward captured audio", "error", err)
		}
	})
	if err != nil {
		_ = s.speechToText.Stop()
		s.failVoiceStart(ErrorKindDevice, "The microphone could not be opened. You can type your message instead.")
		return
	}

	s.clearLastError()
	s.setPhase(PhaseCapturing)
}

// failVoiceStart surfaces a failed capture start. The error phase is
// transient; the controller always comes back to rest at idle.
func (s *SessionController) failVoiceStart(kind, message string) {
	s.surfaceError(kind, message)
	s.setPhase(PhaseError)
	s.setPhase(PhaseIdle)
}

type stopVoiceCommand struct{}

func (stopVoiceCommand) execute(s *SessionController) {
	phase := s.Phase()
	if phase != PhaseCapturing && phase != PhaseTranscribing {
		return
	}

	// Invalidate any transcript still in flight; stopping explicitly means the
	// utterance is abandoned, not submitted.
	s.generation.Add(1)
	s.stopCapture()
	_ = s.speechToText.Stop()

	s.setPendingTranscript("")
	s.setPhase(PhaseIdle)
}

type interimTranscriptCommand struct {
	transcript string
}

func (c interimTranscriptCommand) execute(s *SessionController) {
	phase := s.Phase()
	if phase != PhaseCapturing && phase != PhaseTranscribing {
		return
	}

	s.setPendingTranscript(c.transcript)
}

type speechEndedCommand struct{}

func (speechEndedCommand) execute(s *SessionController) {
	if s.Phase() != PhaseCapturing {
		return
	}

	s.setPhase(PhaseTranscribing)
}

type finalTranscriptCommand struct {
	transcript string
}

func (c finalTranscriptCommand) execute(s *SessionController) {
	phase := s.Phase()
	if phase != PhaseCapturing && phase != PhaseTranscribing {
		return
	}

	s.stopCapture()
	_ = s.speechToText.Stop()
	s.setPendingTranscript("")

	transcript := strings.TrimSpace(c.transcript)
	if transcript == "" {
		s.setPhase(PhaseIdle)
		return
	}

	s.emitEvent(events.NewTranscriptFinal(transcript))
	s.runTurn(transcript)
}

type recognitionErrorCommand struct {
	err error
}

func (c recognitionErrorCommand) execute(s *SessionController) {
	phase := s.Phase()
	if phase != PhaseCapturing && phase != PhaseTranscribing {
		return
	}

	s.stopCapture()
	_ = s.speechToText.Stop()
	s.setPendingTranscript("")

	fault := transcription.FaultOf(c.err)
	logger.Warn("recognition failed", "fault", string(fault), "error", c.err)

	if fault == transcription.FaultNoSpeech {
		s.surfaceError(ErrorKindRecognition, "I didn't catch that. Could you say it again?")
		s.setPhase(PhaseIdle)
		return
	}

	s.surfaceError(ErrorKindRecognition, recognitionFaultMessage(fault))
	s.setPhase(PhaseError)
	s.setPhase(PhaseIdle)
}

func recognitionFaultMessage(fault transcription.Fault) string {
	switch fault {
	case transcription.FaultNetwork:
		return "The speech service could not be reached. Check your connection or type your message instead."
	case transcription.FaultPermission:
		return "Microphone access was denied. Allow it and try again, or type your message instead."
	default:
		return "Speech recognition ran into a problem. You can type your message instead."
	}
}

type textCommand struct {
	text string
}

func (c textCommand) execute(s *SessionController) {
	phase := s.Phase()

	switch phase {
	case PhaseCapturing, PhaseTranscribing:
		// Typing while listening abandons the utterance in favor of the text.
		s.stopCapture()
		_ = s.speechToText.Stop()
		s.setPendingTranscript("")
	case PhaseAwaitingReply, PhaseSpeaking:
		logger.Debug("ignoring text input mid-turn", "phase", phase)
		return
	}

	s.mu.Lock()
	s.inputMode = InputModeText
	s.mu.Unlock()

	s.runTurn(c.text)
}

type cancelCommand struct{}

func (cancelCommand) execute(s *SessionController) {
	s.stopCapture()
	_ = s.speechToText.Stop()

	s.setPendingTranscript("")
	s.clearLastError()
	s.setPhase(PhaseIdle)
}

type clearCommand struct{}

func (clearCommand) execute(s *SessionController) {
	if s.store != nil {
		if err := s.store.Clear(s.baseContext, s.userID); err != nil {
			logger.Warn("failed to clear conversation", "error", err)
			s.surfaceError(ErrorKindStorage, "The conversation history could not be cleared.")
			return
		}
	}

	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

type connectionRestoredCommand struct{}

func (connectionRestoredCommand) execute(s *SessionController) {
	s.setConnection(ConnectionConnected)
	s.clearLastError()
}
