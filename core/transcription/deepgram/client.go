package deepgram

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// TranscriptionClient streams audio to Deepgram's live listen endpoint and
// reports transcripts through the callbacks configured per stream. Only one
// stream may be open at a time.
type TranscriptionClient struct {
	apiKey string
	model  string

	streamMu sync.Mutex
	stream   *listenStream

	active atomic.Bool
}

// listenStream is the state of one websocket stream. The stop flag and the
// transcript accumulator live here rather than on the client, so a read loop
// still draining a closed stream cannot touch a stream opened after it.
type listenStream struct {
	conn    *websocket.Conn
	stopped atomic.Bool

	// accumulatedTranscript collects finalized segments until the utterance ends.
	accumulatedTranscript string
	// unendedSegment is set while speech activity has started but not yet ended.
	unendedSegment bool

	lastMsgTs time.Time
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

// WithModel overrides the default transcription model.
func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{model: "nova-3"}
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
