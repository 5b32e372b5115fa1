// Package domain defines the core domain models for the persona chat service.
package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry in a conversation transcript.
// Messages are immutable once appended, except the MODEL message of a streaming
// reply, which is updated in place by ID as fragments arrive.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Placeholder is the text stored for an empty side of a voice turn.
const Placeholder = "..."

// Conversation is the ordered transcript for a single personality.
type Conversation []ChatMessage

// IndexOf returns the position of the message with the given ID, or -1.
func (c Conversation) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
