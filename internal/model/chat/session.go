package chat

import "time"

// DefaultTitle is assigned to new sessions and restored when a session is cleared.
const DefaultTitle = "New Chat with QaderiChat"

// Session captures an anonymous conversation bound to a browser cookie.
type Session struct {
	ID           string    `json:"id"`
	Key          string    `json:"-"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Active       bool      `json:"is_active"`
	MessageCount int       `json:"message_count"`
}
