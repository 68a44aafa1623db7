// Package sqlite persists chat sessions and messages in a SQLite database.
//
// Messages carry an autoincrement sequence column; transcript order is the
// sequence order, never the wall-clock timestamp.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qaderichat/backend/internal/model/chat"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout is fixed-width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id          TEXT PRIMARY KEY,
	session_key TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS chat_messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	role       TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, seq);
`

// Store implements chat.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ chat.Store = (*Store)(nil)

// Open creates (if needed) and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite chat store initialized")
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetOrCreateSession(ctx context.Context, key string) (chat.Session, error) {
	if key == "" {
		return chat.Session{}, chat.ErrSessionNotFound
	}

	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, session_key, title, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (session_key) DO NOTHING;`,
		uuid.NewString(), key, chat.DefaultTitle, now, now)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}

	return s.FindSessionByKey(ctx, key)
}

const sessionColumns = `
	s.id, s.session_key, s.title, s.created_at, s.updated_at, s.is_active,
	(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)`

func (s *Store) FindSessionByKey(ctx context.Context, key string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions s WHERE s.session_key = ? AND s.is_active = 1;`, key)
	return scanSession(row)
}

func (s *Store) GetSession(ctx context.Context, id string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions s WHERE s.id = ?;`, id)
	return scanSession(row)
}

// ListSessions returns active sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions s WHERE s.is_active = 1 ORDER BY s.created_at DESC, s.rowid DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]chat.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) SetTitle(ctx context.Context, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?;`, title, sessionID)
	if err != nil {
		return fmt.Errorf("set session title: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if !msg.Role.Valid() {
		return chat.Message{}, chat.ErrInvalidMessage
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode message metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	created := formatTime(msg.CreatedAt)
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?;`, created, msg.SessionID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("touch session: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return chat.Message{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?);`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, string(metadata), created)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY seq ASC LIMIT ?;`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *Store) RecentMessages(ctx context.Context, sessionID string, n int) ([]chat.Message, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if n <= 0 {
		return s.ListMessages(ctx, sessionID, 0)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT seq, id, session_id, role, content, metadata, created_at
			FROM chat_messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC;`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *Store) CountMessages(ctx context.Context, sessionID string) (int, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?;`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (s *Store) ClearMessages(ctx context.Context, sessionID string) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?;`, sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?;`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (chat.Session, error) {
	var (
		session          chat.Session
		created, updated string
		active           int
	)
	err := row.Scan(&session.ID, &session.Key, &session.Title, &created, &updated, &active, &session.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.Active = active == 1
	if session.CreatedAt, err = parseTime(created); err != nil {
		return chat.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updated); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			msg               chat.Message
			role, meta, stamp string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &meta, &stamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		msg.Metadata = map[string]any{}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		created, err := parseTime(stamp)
		if err != nil {
			return nil, err
		}
		msg.CreatedAt = created
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
