package models

import (
	"time"

	"github.com/google/uuid"
)

// Role tags who authored a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation
type Message struct {
	ID        string
	Role      Role
	Text      string
	Intent    *DetectedIntent
	Timestamp time.Time
}

// ConversationContext is the state carried from one turn to the next
type ConversationContext struct {
	LastIntent     *DetectedIntent
	LastClientName string
}

// Conversation is the running transcript of one assistant dialogue
type Conversation struct {
	ID        string
	Messages  []Message
	Context   ConversationContext
	StartedAt time.Time
	EndedAt   *time.Time
	Active    bool
}

// NewConversation starts an empty, active conversation with a fresh identity
func NewConversation(now time.Time) Conversation {
	return Conversation{
		ID:        uuid.New().String(),
		Messages:  []Message{},
		StartedAt: now,
		Active:    true,
	}
}

// Recent returns up to n of the latest messages
func (c Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
