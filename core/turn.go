package orchestration

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
	"github.com/Omkar-Kubal/voice-cbt/core/events"
	"github.com/Omkar-Kubal/voice-cbt/core/responder"
	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
)

const apologeticReply = "I'm having trouble responding right now. Can you please try again?"

// runTurn drives one full user turn: append the user message, wait for the
// reply, then speak it in voice mode. It runs on the loop goroutine and
// blocks it until the turn resolves; Cancel unblocks it from outside by
// bumping the generation and cancelling the turn context. Starting a turn
// bumps the generation itself, so stragglers from any earlier activity are
// discarded unconditionally.
func (s *SessionController) runTurn(text string) {
	generation := s.generation.Add(1)

	ctx, span := tracer.Start(s.baseContext, "session.turn",
		trace.WithAttributes(attribute.Int("turn.generation", int(generation))),
	)
	defer span.End()

	turnCtx, cancelTurn := context.WithCancel(ctx)
	s.setActiveTurnCancel(cancelTurn)
	defer func() {
		cancelTurn()
		s.setActiveTurnCancel(nil)
	}()

	s.appendMessage(s.baseContext, conversations.NewUserMessage(text))
	s.setPhase(PhaseAwaitingReply)

	if s.responder == nil {
		s.failTurn(span, errors.New("no responder configured"))
		return
	}

	reply, err := s.responder.Send(turnCtx, text)

	if generation != s.generation.Load() {
		// Cancelled while waiting; whatever came back belongs to a dead turn.
		span.AddEvent("turn cancelled")
		return
	}

	if err != nil {
		s.failTurn(span, err)
		return
	}

	span.SetAttributes(attribute.String("responder.emotion", reply.Emotion))

	systemMessage := conversations.NewSystemMessage(reply.Text, reply.Emotion)
	s.appendMessage(s.baseContext, systemMessage)
	s.setConnection(ConnectionConnected)
	s.clearLastError()

	s.speakReply(turnCtx, generation, reply.Text, s.voiceParamsFor(reply.Emotion))

	if generation != s.generation.Load() {
		return
	}

	s.setPhase(PhaseIdle)
}

// failTurn handles a responder failure: an apologetic system message keeps
// the conversation coherent, the failure kind is surfaced, the connection is
// marked lost, and the health probe takes over re-establishing it. The error
// phase is transient; every failure path ends idle so the user can retry
// through either input mode.
func (s *SessionController) failTurn(span trace.Span, err error) {
	kind := responder.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "responder request failed")
	logger.Warn("responder request failed", "kind", kind, "error", err)

	s.setPhase(PhaseError)

	apology := conversations.NewSystemMessage(apologeticReply, "")
	s.appendLocalMessage(apology)
	s.surfaceError(kind, apologeticReply)

	s.setConnection(ConnectionDisconnected)
	s.startHealthProbe()

	s.setPhase(PhaseIdle)
}

// speakReply plays a system reply when the session is in voice mode. Text
// mode sessions skip straight past the speaking phase.
func (s *SessionController) speakReply(ctx context.Context, generation uint64, text string, params synthesis.VoiceParams) {
	s.mu.RLock()
	voiceMode := s.inputMode == InputModeVoice
	s.mu.RUnlock()

	if !voiceMode || !s.speech.isConfigured() {
		return
	}

	s.setPhase(PhaseSpeaking)

	if err := s.speech.speakAndWait(ctx, s.device, text, params); err != nil {
		logger.Warn("failed to speak reply", "error", err)
		if generation == s.generation.Load() {
			s.surfaceError(ErrorKindSynthesis, "The reply could not be spoken aloud, but it is shown above.")
		}
	}
}

// voiceParamsFor maps a reply's emotion tag to synthesis parameters. Tags
// that resolve to the neutral profile use the session's configured baseline
// instead, so a preferred voice survives untagged replies.
func (s *SessionController) voiceParamsFor(emotion string) synthesis.VoiceParams {
	params := synthesis.ParamsForEmotion(emotion)
	if params == synthesis.NeutralParams() {
		return s.neutralParams
	}
	return params
}

// appendLocalMessage adds a display-only message to the in-memory log without
// persisting it. Apologies for transient failures do not belong in the stored
// conversation history.
func (s *SessionController) appendLocalMessage(message conversations.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.emitEvent(events.NewMessageAppended(message))
}
