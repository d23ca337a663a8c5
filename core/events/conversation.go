package events

import "github.com/Omkar-Kubal/voice-cbt/core/conversations"

const (
	// KindMessageAppended identifies messages added to the conversation log.
	KindMessageAppended Kind = "conversation.message_appended"
)

// MessageAppended carries a message that was appended to the conversation log.
type MessageAppended struct {
	Base
	Message conversations.Message
}

// NewMessageAppended creates a message appended event.
func NewMessageAppended(message conversations.Message) MessageAppended {
	return MessageAppended{Base: NewBase(KindMessageAppended), Message: message}
}
