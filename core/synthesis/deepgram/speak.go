package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Omkar-Kubal/voice-cbt/core/audio"
	"github.com/Omkar-Kubal/voice-cbt/core/synthesis"
)

// Speak synthesizes one utterance. Audio chunks, completion, interruption and
// errors are all reported through the configured callbacks; Speak itself
// returns once the utterance has been handed to the engine.
func (c *TextToSpeechClient) Speak(ctx context.Context, text string, params synthesis.VoiceParams, opts ...synthesis.SpeechOption) error {
	options := synthesis.SpeechOptions{EncodingInfo: audio.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	conn, err := c.connectWebsocket(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	params.Pitch *= c.voice.PitchAdjust

	u := &utterance{
		conn:    conn,
		options: options,
		params:  params,
	}
	c.setActive(u)

	if err := u.send(text); err != nil {
		c.clearActive(u)
		conn.Close()
		return fmt.Errorf("failed to send text to engine: %w", err)
	}

	go func() {
		u.processIncomingMessages(ctx)
		c.clearActive(u)
	}()

	return nil
}

func (c *TextToSpeechClient) connectWebsocket(encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", c.model())
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type utterance struct {
	conn    *websocket.Conn
	options synthesis.SpeechOptions
	params  synthesis.VoiceParams

	writeMu     sync.Mutex
	interrupted atomic.Bool
	finished    atomic.Bool
}

func (u *utterance) send(text string) error {
	u.writeMu.Lock()
	defer u.writeMu.Unlock()

	if err := u.conn.WriteJSON(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "Speak", Text: text}); err != nil {
		return err
	}

	return u.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "Flush"})
}

// interrupt clears the engine buffer and tears the stream down. The completed
// callback is suppressed from this point on.
func (u *utterance) interrupt() error {
	if !u.interrupted.CompareAndSwap(false, true) {
		return nil
	}

	u.writeMu.Lock()
	clearErr := u.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "Clear"})
	u.writeMu.Unlock()

	u.conn.Close()

	if u.options.InterruptedCallback != nil {
		u.options.InterruptedCallback()
	}

	if clearErr != nil {
		return fmt.Errorf("failed to clear engine buffer: %w", clearErr)
	}
	return nil
}

func (u *utterance) processIncomingMessages(ctx context.Context) {
	defer u.conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		msgType, msg, err := u.conn.ReadMessage()
		if err != nil {
			if u.interrupted.Load() || u.finished.Load() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				u.reportError(fmt.Errorf("websocket read failed: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if u.interrupted.Load() {
				continue
			}
			if u.options.SpeechAudioCallback != nil {
				u.options.SpeechAudioCallback(scaleVolume(msg, u.params.Volume, u.options.EncodingInfo))
			}
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				log.Println("Failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				u.finished.Store(true)
				if !u.interrupted.Load() && u.options.CompletedCallback != nil {
					u.options.CompletedCallback()
				}
				return
			case "Warning":
				log.Println("Deepgram speak warning", "message", string(msg))
			}
		}
	}
}

func (u *utterance) reportError(err error) {
	if u.options.ErrorCallback != nil {
		u.options.ErrorCallback(err)
	}
}

// scaleVolume applies the delivery volume to linear16 PCM. Other formats pass
// through untouched; the engine has no server-side volume control.
func scaleVolume(chunk []byte, volume float64, encodingInfo audio.EncodingInfo) []byte {
	if volume >= 1.0 || volume <= 0 || encodingInfo.Format != audio.EncodingLinear16 {
		return chunk
	}

	scaled := make([]byte, len(chunk))
	for i := 0; i+1 < len(chunk); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(chunk[i : i+2]))
		binary.LittleEndian.PutUint16(scaled[i:i+2], uint16(int16(float64(sample)*volume)))
	}
	return scaled
}
