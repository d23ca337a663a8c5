package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
	"github.com/Omkar-Kubal/voice-cbt/core/responder"
	"github.com/Omkar-Kubal/voice-cbt/core/store"
	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
	"github.com/Omkar-Kubal/voice-cbt/core/transcription"
)

type stubTranscription struct {
	mu      sync.Mutex
	options transcription.TranscriptionOptions

	starts atomic.Int32
	stops  atomic.Int32
}

func (s *stubTranscription) Transcribe(_ context.Context, opts ...transcription.TranscriptionOption) error {
	options := transcription.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	s.options = options
	s.mu.Unlock()
	s.starts.Add(1)
	return nil
}

func (s *stubTranscription) SendAudio([]byte) error { return nil }

func (s *stubTranscription) Stop() error {
	s.stops.Add(1)
	return nil
}

// callbacks returns the options the controller wired in, so tests can drive
// the recognition callbacks directly.
func (s *stubTranscription) callbacks() transcription.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

type spokenUtterance struct {
	text   string
	params synthesis.VoiceParams
}

type stubSynthesis struct {
	mu     sync.Mutex
	spoken []spokenUtterance

	// release, when set before Run, delays completion until it is closed.
	release chan struct{}
}

func (s *stubSynthesis) Speak(ctx context.Context, text string, params synthesis.VoiceParams, opts ...synthesis.SpeechOption) error {
	options := synthesis.SpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	s.spoken = append(s.spoken, spokenUtterance{text: text, params: params})
	release := s.release
	s.mu.Unlock()

	if release == nil {
		if options.CompletedCallback != nil {
			options.CompletedCallback()
		}
		return nil
	}

	go func() {
		select {
		case <-release:
			if options.CompletedCallback != nil {
				options.CompletedCallback()
			}
		case <-ctx.Done():
			if options.InterruptedCallback != nil {
				options.InterruptedCallback()
			}
		}
	}()
	return nil
}

func (s *stubSynthesis) Stop() error { return nil }

func (s *stubSynthesis) utterances() []spokenUtterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spokenUtterance{}, s.spoken...)
}

type stubResponder struct {
	sendFunc   func(ctx context.Context, text string) (*responder.Reply, error)
	healthFunc func(ctx context.Context) error

	healthCalls atomic.Int32
}

func (s *stubResponder) Send(ctx context.Context, text string) (*responder.Reply, error) {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, text)
	}
	return &responder.Reply{Text: "That sounds difficult.", Emotion: "anxious"}, nil
}

func (s *stubResponder) Health(ctx context.Context) error {
	s.healthCalls.Add(1)
	if s.healthFunc != nil {
		return s.healthFunc(ctx)
	}
	return nil
}

type stubDevice struct {
	captureStarts atomic.Int32
	captureStops  atomic.Int32
	bufferClears  atomic.Int32
}

func (s *stubDevice) StartCapture(context.Context, func(audio []byte)) error {
	s.captureStarts.Add(1)
	return nil
}

func (s *stubDevice) StopCapture() error {
	s.captureStops.Add(1)
	return nil
}

func (s *stubDevice) SendAudio([]byte) error { return nil }

func (s *stubDevice) ClearBuffer() { s.bufferClears.Add(1) }

func (s *stubDevice) WaitUntilDrained(context.Context) error { return nil }

func (s *stubDevice) EncodingInfo() audio.EncodingInfo { return audio.DefaultEncodingInfo() }

type testHarness struct {
	controller          *SessionController
	transcriptionClient *stubTranscription
	synthesisClient     *stubSynthesis
	responderClient     *stubResponder
	device              *stubDevice
	conversationStore   store.Store
}

func newTestHarness(t *testing.T, opts ...SessionOption) *testHarness {
	t.Helper()

	conversationStore, err := store.NewStore(store.DriverMemory)
	if err != nil {
		t.Fatalf("failed to create memory store: %v", err)
	}

	harness := &testHarness{
		transcriptionClient: &stubTranscription{},
		synthesisClient:     &stubSynthesis{},
		responderClient:     &stubResponder{},
		device:              &stubDevice{},
		conversationStore:   conversationStore,
	}

	options := append([]SessionOption{
		WithTranscriptionClient(harness.transcriptionClient),
		WithSynthesisClient(harness.synthesisClient),
		WithResponder(harness.responderClient),
		WithAudioDevice(harness.device),
		WithStore(conversationStore),
		WithUserID("test-user"),
		WithGreetingPolicy(GreetingPolicy{}),
	}, opts...)

	harness.controller = NewSessionController(options...)
	t.Cleanup(harness.controller.Close)
	return harness
}

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

func waitForPhase(t *testing.T, controller *SessionController, phase Phase) {
	t.Helper()
	waitFor(t, fmt.Sprintf("phase %s", phase), func() bool {
		return controller.Phase() == phase
	})
}

func TestVoiceTurnFlowsThroughPhases(t *testing.T) {
	harness := newTestHarness(t)

	var phasesMu sync.Mutex
	var phases []Phase

	harness.controller.Run(context.Background(), WithPhaseChangedCallback(func(_, current Phase) {
		phasesMu.Lock()
		phases = append(phases, current)
		phasesMu.Unlock()
	}))

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)

	callbacks := harness.transcriptionClient.callbacks()
	callbacks.InterimTranscriptionCallback("I feel")
	waitFor(t, "interim transcript", func() bool {
		return harness.controller.Snapshot().PendingTranscript == "I feel"
	})

	callbacks.SpeechEndedCallback()
	waitForPhase(t, harness.controller, PhaseTranscribing)

	callbacks.TranscriptionCallback("I feel anxious today")
	waitForPhase(t, harness.controller, PhaseIdle)

	snapshot := harness.controller.Snapshot()
	if len(snapshot.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snapshot.Messages))
	}
	if snapshot.Messages[0].Speaker != "user" || snapshot.Messages[0].Text != "I feel anxious today" {
		t.Fatalf("unexpected user message: %+v", snapshot.Messages[0])
	}
	if snapshot.Messages[1].Speaker != "system" || snapshot.Messages[1].Text != "That sounds difficult." {
		t.Fatalf("unexpected system message: %+v", snapshot.Messages[1])
	}
	if snapshot.PendingTranscript != "" {
		t.Fatalf("expected pending transcript cleared, got %q", snapshot.PendingTranscript)
	}

	utterances := harness.synthesisClient.utterances()
	if len(utterances) != 1 {
		t.Fatalf("expected 1 spoken utterance, got %d", len(utterances))
	}
	if utterances[0].params != synthesis.ParamsForEmotion("anxious") {
		t.Fatalf("expected anxious voice params, got %+v", utterances[0].params)
	}

	phasesMu.Lock()
	defer phasesMu.Unlock()
	expected := []Phase{PhaseCapturing, PhaseTranscribing, PhaseAwaitingReply, PhaseSpeaking, PhaseIdle}
	if len(phases) != len(expected) {
		t.Fatalf("expected phases %v, got %v", expected, phases)
	}
	for i := range expected {
		if phases[i] != expected[i] {
			t.Fatalf("expected phases %v, got %v", expected, phases)
		}
	}
}

func TestTextTurnSkipsSpeaking(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.SendText("hello there")
	waitFor(t, "two messages", func() bool {
		return len(harness.controller.Snapshot().Messages) == 2
	})
	waitForPhase(t, harness.controller, PhaseIdle)

	if utterances := harness.synthesisClient.utterances(); len(utterances) != 0 {
		t.Fatalf("expected no spoken utterances in text mode, got %d", len(utterances))
	}
}

func TestMessagesArePersistedInOrder(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.SendText("first")
	waitFor(t, "first exchange", func() bool {
		return len(harness.controller.Snapshot().Messages) == 2
	})
	harness.controller.SendText("second")
	waitFor(t, "second exchange", func() bool {
		return len(harness.controller.Snapshot().Messages) == 4
	})

	stored, err := harness.conversationStore.Load(context.Background(), "test-user")
	if err != nil {
		t.Fatalf("failed to load stored conversation: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(stored))
	}
	expectedSpeakers := []string{"user", "system", "user", "system"}
	for i, message := range stored {
		if string(message.Speaker) != expectedSpeakers[i] {
			t.Fatalf("expected speaker %s at %d, got %s", expectedSpeakers[i], i, message.Speaker)
		}
	}
	if stored[0].Text != "first" || stored[2].Text != "second" {
		t.Fatalf("stored messages out of order: %q, %q", stored[0].Text, stored[2].Text)
	}
}

func TestResponderTimeoutSurfacesApologyAndRecovers(t *testing.T) {
	harness := newTestHarness(t)

	var failing atomic.Bool
	failing.Store(true)
	harness.responderClient.sendFunc = func(context.Context, string) (*responder.Reply, error) {
		if failing.Load() {
			return nil, fmt.Errorf("failed to deliver message: %w", responder.ErrTimeout)
		}
		return &responder.Reply{Text: "Glad you are back."}, nil
	}
	harness.responderClient.healthFunc = func(context.Context) error {
		if failing.Load() {
			return responder.ErrUnreachable
		}
		return nil
	}

	harness.controller.probeInitialInterval = 5 * time.Millisecond
	harness.controller.probeMaxInterval = 20 * time.Millisecond
	harness.controller.Run(context.Background())

	harness.controller.SendText("hello")
	waitForPhase(t, harness.controller, PhaseIdle)
	waitFor(t, "apology appended", func() bool {
		messages := harness.controller.Snapshot().Messages
		return len(messages) == 2 && messages[1].Text == apologeticReply
	})

	snapshot := harness.controller.Snapshot()
	if snapshot.Connection == ConnectionConnected {
		t.Fatalf("expected connection lost, got %s", snapshot.Connection)
	}
	if snapshot.LastError == nil || snapshot.LastError.Kind != "Timeout" {
		t.Fatalf("expected Timeout error, got %+v", snapshot.LastError)
	}

	// The apology stays out of the persisted log.
	stored, err := harness.conversationStore.Load(context.Background(), "test-user")
	if err != nil {
		t.Fatalf("failed to load stored conversation: %v", err)
	}
	if len(stored) != 1 || stored[0].Text != "hello" {
		t.Fatalf("expected only the user message persisted, got %+v", stored)
	}

	failing.Store(false)
	waitFor(t, "connection restored by health probe", func() bool {
		snapshot := harness.controller.Snapshot()
		return snapshot.Connection == ConnectionConnected && snapshot.LastError == nil
	})
	if harness.responderClient.healthCalls.Load() == 0 {
		t.Fatalf("expected health probe to run")
	}
}

func TestMalformedReplyMarksConnectionLost(t *testing.T) {
	harness := newTestHarness(t)

	var failing atomic.Bool
	failing.Store(true)
	harness.responderClient.sendFunc = func(context.Context, string) (*responder.Reply, error) {
		if failing.Load() {
			return nil, fmt.Errorf("failed to parse reply: %w", responder.ErrBadResponse)
		}
		return &responder.Reply{Text: "Glad you are back."}, nil
	}
	harness.responderClient.healthFunc = func(context.Context) error {
		if failing.Load() {
			return responder.ErrServerError
		}
		return nil
	}

	harness.controller.probeInitialInterval = 5 * time.Millisecond
	harness.controller.probeMaxInterval = 20 * time.Millisecond
	harness.controller.Run(context.Background())

	harness.controller.SendText("hello")
	waitFor(t, "connection marked lost", func() bool {
		snapshot := harness.controller.Snapshot()
		return snapshot.Phase == PhaseIdle && snapshot.Connection != ConnectionConnected
	})

	snapshot := harness.controller.Snapshot()
	if snapshot.LastError == nil || snapshot.LastError.Kind != "BadResponse" {
		t.Fatalf("expected BadResponse error, got %+v", snapshot.LastError)
	}
	if len(snapshot.Messages) != 2 || snapshot.Messages[1].Text != apologeticReply {
		t.Fatalf("expected apology after malformed reply, got %+v", snapshot.Messages)
	}

	failing.Store(false)
	waitFor(t, "connection restored after recovery", func() bool {
		snapshot := harness.controller.Snapshot()
		return snapshot.Connection == ConnectionConnected && snapshot.LastError == nil
	})
}

func TestCancelDiscardsLateReply(t *testing.T) {
	harness := newTestHarness(t)

	block := make(chan struct{})
	harness.responderClient.sendFunc = func(ctx context.Context, _ string) (*responder.Reply, error) {
		select {
		case <-block:
			return &responder.Reply{Text: "too late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	harness.controller.Run(context.Background())

	harness.controller.SendText("hello")
	waitForPhase(t, harness.controller, PhaseAwaitingReply)

	harness.controller.Cancel()
	waitForPhase(t, harness.controller, PhaseIdle)
	close(block)

	time.Sleep(20 * time.Millisecond)
	snapshot := harness.controller.Snapshot()
	if len(snapshot.Messages) != 1 {
		t.Fatalf("expected the cancelled turn to keep only the user message, got %d", len(snapshot.Messages))
	}
	if snapshot.Phase != PhaseIdle {
		t.Fatalf("expected idle after cancel, got %s", snapshot.Phase)
	}
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	harness := newTestHarness(t)

	var phaseChanges atomic.Int32
	harness.controller.Run(context.Background(), WithPhaseChangedCallback(func(_, _ Phase) {
		phaseChanges.Add(1)
	}))

	harness.controller.Cancel()
	time.Sleep(20 * time.Millisecond)

	if harness.controller.Phase() != PhaseIdle {
		t.Fatalf("expected idle, got %s", harness.controller.Phase())
	}
	if phaseChanges.Load() != 0 {
		t.Fatalf("expected no phase changes, got %d", phaseChanges.Load())
	}
}

func TestStopVoiceDiscardsPendingUtterance(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)

	callbacks := harness.transcriptionClient.callbacks()
	callbacks.InterimTranscriptionCallback("never mind")
	harness.controller.StopVoice()
	waitForPhase(t, harness.controller, PhaseIdle)

	// A final transcript racing the stop belongs to the abandoned utterance.
	callbacks.TranscriptionCallback("never mind")
	time.Sleep(20 * time.Millisecond)

	snapshot := harness.controller.Snapshot()
	if len(snapshot.Messages) != 0 {
		t.Fatalf("expected no messages after stop, got %d", len(snapshot.Messages))
	}
	if snapshot.PendingTranscript != "" {
		t.Fatalf("expected pending transcript cleared, got %q", snapshot.PendingTranscript)
	}
	if harness.device.captureStops.Load() == 0 {
		t.Fatalf("expected capture device stopped")
	}
}

func TestStartVoiceWhileSpeakingDoesNotCapture(t *testing.T) {
	harness := newTestHarness(t)
	harness.synthesisClient.release = make(chan struct{})

	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)
	harness.transcriptionClient.callbacks().TranscriptionCallback("how are you")
	waitForPhase(t, harness.controller, PhaseSpeaking)

	harness.controller.StartVoice()
	time.Sleep(20 * time.Millisecond)
	if starts := harness.transcriptionClient.starts.Load(); starts != 1 {
		t.Fatalf("expected capture not restarted while speaking, got %d starts", starts)
	}

	close(harness.synthesisClient.release)
}

func TestCancelWhileSpeakingInterruptsPlayback(t *testing.T) {
	harness := newTestHarness(t)
	harness.synthesisClient.release = make(chan struct{})

	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)
	harness.transcriptionClient.callbacks().TranscriptionCallback("tell me more")
	waitForPhase(t, harness.controller, PhaseSpeaking)

	harness.controller.Cancel()
	waitForPhase(t, harness.controller, PhaseIdle)

	if harness.device.bufferClears.Load() == 0 {
		t.Fatalf("expected playback buffer cleared on cancel")
	}
}

func TestRecognitionNetworkFaultSurfacesError(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)

	callbacks := harness.transcriptionClient.callbacks()
	callbacks.ErrorCallback(transcription.NewRecognitionError(transcription.FaultNetwork, fmt.Errorf("dial failed")))
	waitFor(t, "recognition error surfaced", func() bool {
		snapshot := harness.controller.Snapshot()
		return snapshot.Phase == PhaseIdle && snapshot.LastError != nil
	})

	snapshot := harness.controller.Snapshot()
	if snapshot.LastError.Kind != ErrorKindRecognition {
		t.Fatalf("expected recognition error surfaced, got %+v", snapshot.LastError)
	}
	if len(snapshot.Messages) != 0 {
		t.Fatalf("expected no messages after recognition failure, got %d", len(snapshot.Messages))
	}

	// The controller is back at idle, typing still works.
	harness.controller.SendText("fallback to text")
	waitFor(t, "text turn after failure", func() bool {
		return len(harness.controller.Snapshot().Messages) == 2
	})
}

func TestNoSpeechReturnsToIdle(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)

	callbacks := harness.transcriptionClient.callbacks()
	callbacks.ErrorCallback(transcription.NewRecognitionError(transcription.FaultNoSpeech, nil))
	waitFor(t, "retry prompt surfaced", func() bool {
		snapshot := harness.controller.Snapshot()
		return snapshot.Phase == PhaseIdle && snapshot.LastError != nil
	})

	if kind := harness.controller.Snapshot().LastError.Kind; kind != ErrorKindRecognition {
		t.Fatalf("expected a recognition error, got %s", kind)
	}
}

func TestClearConversationEmptiesLogAndStore(t *testing.T) {
	harness := newTestHarness(t)
	harness.controller.Run(context.Background())

	harness.controller.SendText("remember this")
	waitFor(t, "exchange recorded", func() bool {
		return len(harness.controller.Snapshot().Messages) == 2
	})

	harness.controller.ClearConversation()
	waitFor(t, "conversation cleared", func() bool {
		return len(harness.controller.Snapshot().Messages) == 0
	})

	stored, err := harness.conversationStore.Load(context.Background(), "test-user")
	if err != nil {
		t.Fatalf("failed to load stored conversation: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected empty store after clear, got %d messages", len(stored))
	}
}

func TestUntaggedReplyUsesPreferredBaseline(t *testing.T) {
	preferred := synthesis.VoiceParams{Rate: 165, Pitch: 0.95, Volume: 0.8}
	harness := newTestHarness(t, WithPreferredVoiceParams(preferred))
	harness.responderClient.sendFunc = func(context.Context, string) (*responder.Reply, error) {
		return &responder.Reply{Text: "Tell me more."}, nil
	}

	harness.controller.Run(context.Background())

	harness.controller.StartVoice()
	waitForPhase(t, harness.controller, PhaseCapturing)
	harness.transcriptionClient.callbacks().TranscriptionCallback("hi")
	waitForPhase(t, harness.controller, PhaseIdle)

	utterances := harness.synthesisClient.utterances()
	if len(utterances) != 1 {
		t.Fatalf("expected 1 spoken utterance, got %d", len(utterances))
	}
	if utterances[0].params != preferred {
		t.Fatalf("expected preferred baseline params, got %+v", utterances[0].params)
	}
}
