package conversations

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies which side of the conversation produced a message.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// Message is one conversational turn entry. IDs are unique within a
// conversation; ordering is by Timestamp.
type Message struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	EmotionTag string    `json:"emotionTag,omitempty"`
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Speaker:   SpeakerUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a system message stamped with the current time.
// The emotion tag may be empty when the responder did not classify the reply.
func NewSystemMessage(text string, emotionTag string) Message {
	return Message{
		ID:         uuid.NewString(),
		Speaker:    SpeakerSystem,
		Text:       text,
		Timestamp:  time.Now(),
		EmotionTag: emotionTag,
	}
}
