package deepgram

import (
	"fmt"
	"os"
	"sync"

	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
)

// AvailableVoices lists the aura voices this adapter knows how to request.
func AvailableVoices() []string {
	return []string{
		"aura-2-thalia-en",
		"aura-asteria-en",
		"aura-luna-en",
		"aura-stella-en",
		"aura-orion-en",
	}
}

// TextToSpeechClient synthesizes speech over Deepgram's streaming speak
// endpoint. One utterance may be in flight at a time; Speak while active is
// coalesced into a no-op by the caller's state machine.
type TextToSpeechClient struct {
	apiKey string
	voice  synthesis.VoiceSelection

	mu     sync.Mutex
	active *utterance
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

// NewTextToSpeechClient resolves the voice to use through the fallback chain
// and never fails on an unavailable preference.
func NewTextToSpeechClient(preferredVoice string, opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		voice: synthesis.SelectVoice(preferredVoice, AvailableVoices()),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

// Voice reports the resolved voice selection.
func (c *TextToSpeechClient) Voice() synthesis.VoiceSelection { return c.voice }

// Stop cancels the in-flight utterance, if any. After Stop returns, the
// utterance's completion callback will not fire.
func (c *TextToSpeechClient) Stop() error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active == nil {
		return nil
	}

	return active.interrupt()
}

func (c *TextToSpeechClient) setActive(u *utterance) {
	c.mu.Lock()
	c.active = u
	c.mu.Unlock()
}

func (c *TextToSpeechClient) clearActive(u *utterance) {
	c.mu.Lock()
	if c.active == u {
		c.active = nil
	}
	c.mu.Unlock()
}

func (c *TextToSpeechClient) model() string {
	if c.voice.Voice == "" {
		return AvailableVoices()[0]
	}
	return c.voice.Voice
}
