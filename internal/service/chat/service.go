package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/qaderichat/backend/internal/metrics"
	"github.com/qaderichat/backend/internal/model/chat"
	"github.com/qaderichat/backend/internal/service/ai"
)

var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrSessionNotFound = chat.ErrSessionNotFound
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 500
	defaultHistoryLimit = 10
)

// Generator produces an assistant reply for an ordered list of turns.
// *ai.Provider implements it.
type Generator interface {
	Kind() ai.Kind
	Generate(ctx context.Context, turns []*schema.Message) (ai.Reply, error)
}

// Config tunes the relay.
type Config struct {
	SystemPrompt string
	// HistoryLimit is the number of stored messages forwarded as context.
	HistoryLimit int
}

// Service relays user messages to the AI provider and keeps the transcript.
type Service struct {
	store     chat.Store
	generator Generator
	cfg       Config
	metrics   *metrics.Metrics
}

// NewService wires a relay over store and generator. m may be nil.
func NewService(store chat.Store, generator Generator, cfg Config, m *metrics.Metrics) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Service{store: store, generator: generator, cfg: cfg, metrics: m}
}

// Provider returns the configured vendor.
func (s *Service) Provider() ai.Kind {
	return s.generator.Kind()
}

// SendResult is the outcome of one relayed message. When Success is false
// AssistantMessage holds a fallback text that was not persisted.
type SendResult struct {
	Success          bool
	Session          chat.Session
	UserMessage      chat.Message
	AssistantMessage chat.Message
	Metadata         map[string]any
	ErrorKind        ai.ErrorKind
}

// Send stores the user message, asks the provider for a reply once and
// stores the reply on success. A provider failure is reported through the
// result, not the error; err is reserved for invalid input and storage
// failures.
func (s *Service) Send(ctx context.Context, sessionKey, text string) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	session, err := s.store.GetOrCreateSession(ctx, sessionKey)
	if err != nil {
		return SendResult{}, fmt.Errorf("resolve session: %w", err)
	}

	userMsg, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: session.ID,
		Role:      chat.RoleUser,
		Content:   text,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("save user message: %w", err)
	}
	s.metrics.MessageStored(string(chat.RoleUser))

	result := SendResult{Session: session, UserMessage: userMsg}

	recent, err := s.store.RecentMessages(ctx, session.ID, s.cfg.HistoryLimit)
	if err != nil {
		return SendResult{}, fmt.Errorf("load context: %w", err)
	}
	turns, err := ai.BuildContext(ctx, s.cfg.SystemPrompt, recent, s.cfg.HistoryLimit)
	if err != nil {
		return SendResult{}, err
	}

	provider := s.generator.Kind()
	started := time.Now()
	reply, genErr := s.generator.Generate(ctx, turns)
	elapsed := time.Since(started)

	if genErr != nil {
		kind := ai.KindOf(genErr)
		s.metrics.ObserveProvider(string(provider), string(kind), elapsed)
		log.Error().Err(genErr).
			Str("session", session.ID).
			Str("provider", string(provider)).
			Str("kind", string(kind)).
			Dur("elapsed", elapsed).
			Msg("provider call failed")

		result.ErrorKind = kind
		result.AssistantMessage = chat.Message{
			SessionID: session.ID,
			Role:      chat.RoleAssistant,
			Content:   ai.FallbackMessage(kind),
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]any{},
		}
		return result, nil
	}
	s.metrics.ObserveProvider(string(provider), "", elapsed)

	metadata := reply.Metadata(provider)
	assistantMsg, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: session.ID,
		Role:      chat.RoleAssistant,
		Content:   reply.Text,
		Metadata:  metadata,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("save assistant message: %w", err)
	}
	s.metrics.MessageStored(string(chat.RoleAssistant))

	if count, err := s.store.CountMessages(ctx, session.ID); err == nil && count <= 2 {
		title := GenerateTitle(text)
		if err := s.store.SetTitle(ctx, session.ID, title); err != nil {
			log.Warn().Err(err).Str("session", session.ID).Msg("failed to update session title")
		} else {
			session.Title = title
		}
	}

	log.Info().
		Str("session", session.ID).
		Str("provider", string(provider)).
		Int("length", len(reply.Text)).
		Dur("elapsed", elapsed).
		Msg("generated reply")

	result.Success = true
	result.Session = session
	result.AssistantMessage = assistantMsg
	result.Metadata = metadata
	return result, nil
}

// Messages returns the first limit messages of the session bound to
// sessionKey. An unknown key yields an empty transcript.
func (s *Service) Messages(ctx context.Context, sessionKey string, limit int) ([]chat.Message, error) {
	session, err := s.store.FindSessionByKey(ctx, sessionKey)
	if errors.Is(err, chat.ErrSessionNotFound) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return s.store.ListMessages(ctx, session.ID, ClampLimit(limit))
}

// Clear deletes every message of the session bound to sessionKey and resets
// its title. The session itself is kept.
func (s *Service) Clear(ctx context.Context, sessionKey string) (chat.Session, error) {
	session, err := s.store.GetOrCreateSession(ctx, sessionKey)
	if err != nil {
		return chat.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	if err := s.store.ClearMessages(ctx, session.ID); err != nil {
		return chat.Session{}, fmt.Errorf("clear messages: %w", err)
	}
	if err := s.store.SetTitle(ctx, session.ID, chat.DefaultTitle); err != nil {
		return chat.Session{}, fmt.Errorf("reset title: %w", err)
	}

	s.metrics.ChatCleared()
	log.Info().Str("session", session.ID).Msg("chat history cleared")
	session.Title = chat.DefaultTitle
	session.MessageCount = 0
	return session, nil
}

// Sessions lists active sessions, newest first.
func (s *Service) Sessions(ctx context.Context) ([]chat.Session, error) {
	return s.store.ListSessions(ctx)
}

// SessionMessages returns the full transcript of session id.
func (s *Service) SessionMessages(ctx context.Context, id string) ([]chat.Message, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id, 0)
}

// ClampLimit applies the default and maximum page size to limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		return MaxMessageLimit
	}
	return limit
}

// GenerateTitle derives a session title from the first user message.
func GenerateTitle(first string) string {
	words := strings.Fields(first)
	if len(words) > 5 {
		words = words[:5]
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}
	if title == "" {
		return "Chat with QaderiChat"
	}
	return title
}
