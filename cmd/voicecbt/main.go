package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	orchestration "github.com/Omkar-Kubal/voice-cbt/core"
	"github.com/Omkar-Kubal/voice-cbt/core/audio/miniaudio"
	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
	"github.com/Omkar-Kubal/voice-cbt/core/responder"
	"github.com/Omkar-Kubal/voice-cbt/core/store"
	synthesisdeepgram "github.com/Omkar-Kubal/voice-cbt/core/synthesis/deepgram"
	transcriptiondeepgram "github.com/Omkar-Kubal/voice-cbt/core/transcription/deepgram"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	responderURL := envOr("RESPONDER_URL", "http://localhost:8000")
	userID := envOr("VOICE_CBT_USER", "local")

	conversationStore, err := newStore()
	if err != nil {
		return fmt.Errorf("failed to create conversation store: %w", err)
	}
	defer conversationStore.Close()

	options := []orchestration.SessionOption{
		orchestration.WithResponder(responder.NewClient(responderURL)),
		orchestration.WithStore(conversationStore),
		orchestration.WithUserID(userID),
		orchestration.WithGreetingPolicy(greetingPolicy()),
	}

	voiceReady := false
	if _, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		voiceOptions, err := newVoiceOptions()
		if err != nil {
			log.Printf("Voice input unavailable, continuing text-only: %v", err)
		} else {
			options = append(options, voiceOptions...)
			voiceReady = true
		}
	} else {
		log.Println("DEEPGRAM_API_KEY not set, continuing text-only")
	}

	controller := orchestration.NewSessionController(options...)
	defer controller.Close()

	program := tea.NewProgram(newModel(controller, voiceReady), tea.WithAltScreen())

	controller.Run(ctx,
		orchestration.WithPhaseChangedCallback(func(previous, current orchestration.Phase) {
			program.Send(phaseMsg{previous: previous, current: current})
		}),
		orchestration.WithTranscriptCallback(func(transcript string) {
			program.Send(transcriptMsg(transcript))
		}),
		orchestration.WithMessageCallback(func(message conversations.Message) {
			program.Send(messageMsg(message))
		}),
		orchestration.WithErrorCallback(func(sessionError orchestration.SessionError) {
			program.Send(errorMsg(sessionError))
		}),
		orchestration.WithConnectionChangedCallback(func(connection orchestration.Connection) {
			program.Send(connectionMsg(connection))
		}),
	)

	program.Send(historyMsg(controller.Snapshot().Messages))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run interface: %w", err)
	}

	return nil
}

func newVoiceOptions() ([]orchestration.SessionOption, error) {
	transcriptionClient, err := transcriptiondeepgram.NewTranscriptionClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription client: %w", err)
	}

	synthesisClient, err := synthesisdeepgram.NewTextToSpeechClient(os.Getenv("VOICE_CBT_VOICE"))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis client: %w", err)
	}

	device, err := miniaudio.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}

	return []orchestration.SessionOption{
		orchestration.WithTranscriptionClient(transcriptionClient),
		orchestration.WithSynthesisClient(synthesisClient),
		orchestration.WithAudioDevice(device),
	}, nil
}

func newStore() (store.Store, error) {
	addr, ok := os.LookupEnv("REDIS_ADDR")
	if !ok {
		return store.NewStore(store.DriverMemory)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	return store.NewStore(store.DriverRedis,
		store.WithRedisClient(client),
		store.WithRedisTTL(90*24*time.Hour),
	)
}

func greetingPolicy() orchestration.GreetingPolicy {
	if window, ok := os.LookupEnv("VOICE_CBT_GREETING_WINDOW"); ok {
		parsed, err := time.ParseDuration(window)
		if err == nil {
			return orchestration.RollingWindowGreeting(parsed)
		}
		log.Printf("Ignoring invalid VOICE_CBT_GREETING_WINDOW %q: %v", window, err)
	}

	return orchestration.CalendarDayGreeting()
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
