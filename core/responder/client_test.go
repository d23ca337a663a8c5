package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendParsesReplyAndEmotion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/session/message", r.URL.Path)

		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "I feel overwhelmed", payload.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply": "That sounds heavy.", "emotion": "sad"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	reply, err := client.Send(context.Background(), "I feel overwhelmed")
	require.NoError(t, err)
	assert.Equal(t, "That sounds heavy.", reply.Text)
	assert.Equal(t, "sad", reply.Emotion)
}

func TestSendWithoutEmotionTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"reply": "Tell me more."}`))
	}))
	defer server.Close()

	reply, err := NewClient(server.URL).Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Tell me more.", reply.Text)
	assert.Empty(t, reply.Emotion)
}

func TestSendClassifiesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, "ServerError", KindOf(err))
}

func TestSendClassifiesMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, "BadResponse", KindOf(err))
}

func TestSendRejectsEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"reply": "  "}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestSendClassifiesTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))

	_, err := client.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Timeout", KindOf(err))
}

func TestSendClassifiesUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	_, err := NewClient(server.URL).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, "Unreachable", KindOf(err))
}

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	require.NoError(t, client.Health(context.Background()))

	healthy = false
	require.ErrorIs(t, client.Health(context.Background()), ErrServerError)
}
