package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
	"github.com/Omkar-Kubal/voice-cbt/core/transcription"
)

// Transcribe opens a live transcription stream. It errors with
// [transcription.ErrAlreadyActive] if a stream is already open on this client.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...transcription.TranscriptionOption) error {
	options := &transcription.TranscriptionOptions{EncodingInfo: audio.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	if !c.active.CompareAndSwap(false, true) {
		return transcription.ErrAlreadyActive
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		c.active.Store(false)
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format,

		detectSpeechActivity: options.SpeechStartedCallback != nil || options.SpeechEndedCallback != nil,
		interimResults:       options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		c.active.Store(false)
		return transcription.NewRecognitionError(transcription.FaultNetwork,
			fmt.Errorf("failed to open websocket: %w", err))
	}

	stream := &listenStream{conn: conn, lastMsgTs: time.Now()}
	c.streamMu.Lock()
	c.stream = stream
	c.streamMu.Unlock()

	go c.readAndProcessMessages(ctx, stream, *options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechActivity bool
	interimResults       bool
}

func (c *TranscriptionClient) connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	if options.detectSpeechActivity {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (c *TranscriptionClient) SendAudio(audioChunk []byte) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream == nil {
		return fmt.Errorf("transcription stream not open")
	}

	c.stream.lastMsgTs = time.Now()
	if err := c.stream.conn.WriteMessage(websocket.BinaryMessage, audioChunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Stop ends the stream deterministically. No callbacks fire after Stop
// returns, even for messages already in flight. The stream is detached from
// the client immediately; its read loop drains in the background until the
// server acknowledges the close.
func (c *TranscriptionClient) Stop() error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	stream := c.stream
	if stream == nil {
		c.active.Store(false)
		return nil
	}

	stream.stopped.Store(true)
	c.stream = nil
	c.active.Store(false)

	if err := stream.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		// The read loop closes the connection either way.
		stream.conn.Close()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) readAndProcessMessages(ctx context.Context, stream *listenStream, options transcription.TranscriptionOptions) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go c.generateSilence(silenceCtx, stream, options.EncodingInfo)

	defer func() {
		stream.conn.Close()
		c.streamMu.Lock()
		// A stream stopped and replaced before its read loop drained must not
		// release the replacement's latch.
		if c.stream == stream {
			c.stream = nil
			c.active.Store(false)
		}
		c.streamMu.Unlock()
	}()

	for {
		msgType, msg, err := stream.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || stream.stopped.Load() {
				return
			}
			stream.reportError(options, classifyReadError(err))
			return
		}
		if msgType != websocket.BinaryMessage {
			stream.processMessage(msg, options)
		}
	}
}

func (s *listenStream) processMessage(msg []byte, options transcription.TranscriptionOptions) {
	if s.stopped.Load() {
		return
	}

	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(options)
			}
			return
		}

		if len(transcript) > 0 && options.InterimTranscriptionCallback != nil {
			s.invoke(func() {
				options.InterimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
			})
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment || s.accumulatedTranscript != "" {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			s.invoke(options.SpeechStartedCallback)
		}
	}
}

func (s *listenStream) onSpeechEnded(options transcription.TranscriptionOptions) {
	s.unendedSegment = false

	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""

	if options.SpeechEndedCallback != nil {
		s.invoke(options.SpeechEndedCallback)
	}

	if len(fullTranscript) == 0 {
		s.reportError(options, transcription.NewRecognitionError(transcription.FaultNoSpeech,
			fmt.Errorf("utterance ended without recognizable speech")))
		return
	}

	if options.TranscriptionCallback != nil {
		s.invoke(func() { options.TranscriptionCallback(fullTranscript) })
	}
}

func (s *listenStream) reportError(options transcription.TranscriptionOptions, err error) {
	if options.ErrorCallback == nil {
		return
	}
	s.invoke(func() { options.ErrorCallback(err) })
}

// invoke runs a callback unless the stream has been stopped. Stop wins races
// with in-flight messages.
func (s *listenStream) invoke(callback func()) {
	if s.stopped.Load() {
		return
	}
	callback()
}

func classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || websocket.IsUnexpectedCloseError(err) {
		return transcription.NewRecognitionError(transcription.FaultNetwork, err)
	}
	return transcription.NewRecognitionError(transcription.FaultOther, err)
}

// generateSilence keeps the stream alive through capture gaps: it pads short
// gaps with encoded silence and degrades to protocol keep-alives during long
// idle stretches. It exits once its stream is detached from the client.
func (c *TranscriptionClient) generateSilence(ctx context.Context, stream *listenStream, encoding audio.EncodingInfo) {
	const durationMs = 50
	const millisecondsPerSecond = 1000
	ticker := time.NewTicker(durationMs * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*durationMs/millisecondsPerSecond)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var silenceStarted time.Time
	var lastKeepAlive time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.streamMu.Lock()
			current := c.stream == stream
			idleFor := time.Since(stream.lastMsgTs)
			c.streamMu.Unlock()
			if !current {
				return
			}

			if idleFor.Milliseconds() <= durationMs {
				silenceStarted = time.Time{}
				continue
			}

			if silenceStarted.IsZero() {
				silenceStarted = time.Now()
			}

			if time.Since(silenceStarted) < time.Second {
				c.writeSilence(stream, chunk)
				continue
			}

			if time.Since(lastKeepAlive) >= 5*time.Second {
				lastKeepAlive = time.Now()
				c.sendKeepAlive(stream)
			}
		}
	}
}

func (c *TranscriptionClient) writeSilence(stream *listenStream, chunk []byte) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream != stream {
		return
	}

	if err := stream.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		log.Println("Sending silence audio error", err)
	}
}

func (c *TranscriptionClient) sendKeepAlive(stream *listenStream) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream != stream {
		return
	}

	if err := stream.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}
