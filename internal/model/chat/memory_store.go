package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. It backs tests and
// DATABASE_PATH=":memory:" deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byKey    map[string]string
	messages map[string][]Message
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byKey:    make(map[string]string),
		messages: make(map[string][]Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetOrCreateSession(_ context.Context, key string) (Session, error) {
	if key == "" {
		return Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[key]; ok {
		return s.snapshot(id), nil
	}

	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		Key:       key,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Active:    true,
	}
	s.sessions[session.ID] = session
	s.byKey[key] = session.ID
	s.messages[session.ID] = make([]Message, 0, 16)

	return s.snapshot(session.ID), nil
}

func (s *MemoryStore) FindSessionByKey(_ context.Context, key string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.snapshot(id), nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.snapshot(id), nil
}

// ListSessions returns active sessions, newest first.
func (s *MemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		if session.Active {
			out = append(out, s.snapshot(id))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SetTitle(_ context.Context, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.Title = title
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg Message) (Message, error) {
	if !msg.Role.Valid() {
		return Message{}, ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[msg.SessionID]
	if !ok {
		return Message{}, ErrSessionNotFound
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}

	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	session.UpdatedAt = msg.CreatedAt
	return msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return append(make([]Message, 0, len(messages)), messages...), nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, n int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	return append(make([]Message, 0, len(messages)), messages...), nil
}

func (s *MemoryStore) CountMessages(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return len(messages), nil
}

func (s *MemoryStore) ClearMessages(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	s.messages[sessionID] = make([]Message, 0, 16)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// snapshot copies the session under id; callers hold s.mu.
func (s *MemoryStore) snapshot(id string) Session {
	session := *s.sessions[id]
	session.MessageCount = len(s.messages[id])
	return session
}
