package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

// Message roles.
const (
	// RoleUser is a message authored by the person reading the PDF.
	RoleUser Role = "user"

	// RoleAssistant is a message produced by the AI assistant.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is a single turn in an annotation's conversation.
//
// The id, role, and timestamp are fixed at creation; only the content
// may change afterwards (message editing).
type Message struct {
	// ID is the unique identifier, unique within the owning annotation.
	ID string

	// Role is the message author.
	Role Role

	// Content is the message text. Mutable via EditMessage.
	Content string

	// Timestamp is when the message was created.
	Timestamp time.Time

	// ImageBase64 is an optional base64-encoded screenshot, present only
	// on user messages that carry one. The backend treats it as opaque
	// text and never decodes it.
	ImageBase64 string
}

// NewUserMessage creates a user message with a generated id and the
// current timestamp. imageBase64 may be empty.
func NewUserMessage(content, imageBase64 string) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Content:     content,
		Timestamp:   time.Now().UTC(),
		ImageBase64: imageBase64,
	}
}

// NewAssistantMessage creates an assistant message with a generated id
// and the current timestamp.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
