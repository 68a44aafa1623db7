// Package storetest holds behavioural checks shared by every chat.Store implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaderichat/backend/internal/model/chat"
)

// Run exercises newStore against the chat.Store contract. newStore must
// return an empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) chat.Store) {
	t.Run("GetOrCreateSessionIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.GetOrCreateSession(ctx, "key-a")
		require.NoError(t, err)
		second, err := store.GetOrCreateSession(ctx, "key-a")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, chat.DefaultTitle, first.Title)
		assert.True(t, first.Active)

		other, err := store.GetOrCreateSession(ctx, "key-b")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
	})

	t.Run("FindSessionByKeyMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindSessionByKey(context.Background(), "nope")
		assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	})

	t.Run("GetSessionMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetSession(context.Background(), "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	})

	t.Run("MessagesKeepInsertionOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		session, err := store.GetOrCreateSession(ctx, "ordered")
		require.NoError(t, err)

		for i := 0; i < 12; i++ {
			role := chat.RoleUser
			if i%2 == 1 {
				role = chat.RoleAssistant
			}
			_, err := store.AppendMessage(ctx, chat.Message{
				SessionID: session.ID,
				Role:      role,
				Content:   fmt.Sprintf("m%02d", i),
			})
			require.NoError(t, err)
		}

		all, err := store.ListMessages(ctx, session.ID, 0)
		require.NoError(t, err)
		require.Len(t, all, 12)
		for i, msg := range all {
			assert.Equal(t, fmt.Sprintf("m%02d", i), msg.Content)
			assert.NotEmpty(t, msg.ID)
			assert.False(t, msg.CreatedAt.IsZero())
		}

		head, err := store.ListMessages(ctx, session.ID, 3)
		require.NoError(t, err)
		require.Len(t, head, 3)
		assert.Equal(t, "m00", head[0].Content)
		assert.Equal(t, "m02", head[2].Content)

		recent, err := store.RecentMessages(ctx, session.ID, 4)
		require.NoError(t, err)
		require.Len(t, recent, 4)
		assert.Equal(t, "m08", recent[0].Content)
		assert.Equal(t, "m11", recent[3].Content)

		count, err := store.CountMessages(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 12, count)

		got, err := store.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 12, got.MessageCount)
	})

	t.Run("MetadataRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		session, err := store.GetOrCreateSession(ctx, "meta")
		require.NoError(t, err)

		_, err = store.AppendMessage(ctx, chat.Message{
			SessionID: session.ID,
			Role:      chat.RoleAssistant,
			Content:   "hi",
			Metadata:  map[string]any{"model": "gpt-4o-mini", "provider": "openai"},
		})
		require.NoError(t, err)

		messages, err := store.ListMessages(ctx, session.ID, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "gpt-4o-mini", messages[0].Metadata["model"])
		assert.Equal(t, "openai", messages[0].Metadata["provider"])
	})

	t.Run("AppendRejectsUnknownSessionAndRole", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.AppendMessage(ctx, chat.Message{SessionID: "missing", Role: chat.RoleUser, Content: "x"})
		assert.ErrorIs(t, err, chat.ErrSessionNotFound)

		session, err := store.GetOrCreateSession(ctx, "roles")
		require.NoError(t, err)
		_, err = store.AppendMessage(ctx, chat.Message{SessionID: session.ID, Role: "robot", Content: "x"})
		assert.ErrorIs(t, err, chat.ErrInvalidMessage)
	})

	t.Run("ClearKeepsSession", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		session, err := store.GetOrCreateSession(ctx, "clear")
		require.NoError(t, err)

		_, err = store.AppendMessage(ctx, chat.Message{SessionID: session.ID, Role: chat.RoleUser, Content: "hello"})
		require.NoError(t, err)
		require.NoError(t, store.ClearMessages(ctx, session.ID))

		count, err := store.CountMessages(ctx, session.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		again, err := store.FindSessionByKey(ctx, "clear")
		require.NoError(t, err)
		assert.Equal(t, session.ID, again.ID)
	})

	t.Run("SetTitleAndListSessions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a, err := store.GetOrCreateSession(ctx, "a")
		require.NoError(t, err)
		_, err = store.GetOrCreateSession(ctx, "b")
		require.NoError(t, err)

		require.NoError(t, store.SetTitle(ctx, a.ID, "Renamed"))
		assert.ErrorIs(t, store.SetTitle(ctx, "missing", "x"), chat.ErrSessionNotFound)

		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		titles := map[string]string{}
		for _, s := range sessions {
			titles[s.ID] = s.Title
		}
		assert.Equal(t, "Renamed", titles[a.ID])
	})
}
