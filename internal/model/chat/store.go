package chat

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMessage  = errors.New("invalid message")
)

// Store persists sessions and their append-only message lists.
type Store interface {
	// GetOrCreateSession returns the active session for key, creating it when absent.
	GetOrCreateSession(ctx context.Context, key string) (Session, error)
	// FindSessionByKey returns the active session for key or ErrSessionNotFound.
	FindSessionByKey(ctx context.Context, key string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	SetTitle(ctx context.Context, sessionID, title string) error

	// AppendMessage stores msg and returns it with ID and CreatedAt populated.
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// ListMessages returns up to limit messages from the start of the transcript.
	// A limit <= 0 returns every message.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	// RecentMessages returns the last n messages in insertion order.
	RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	ClearMessages(ctx context.Context, sessionID string) error

	Close() error
}
