package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single immutable turn of a session transcript.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"-"`
	Role      Role           `json:"type"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}
