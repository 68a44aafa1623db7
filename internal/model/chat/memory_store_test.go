package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaderichat/backend/internal/model/chat"
	"github.com/qaderichat/backend/internal/model/chat/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) chat.Store {
		return chat.NewMemoryStore()
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreateSession(ctx, "copy")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, chat.Message{SessionID: session.ID, Role: chat.RoleUser, Content: "original"})
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, session.ID, 0)
	require.NoError(t, err)
	messages[0].Content = "mutated"

	again, err := store.ListMessages(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, chat.RoleUser.Valid())
	assert.True(t, chat.RoleAssistant.Valid())
	assert.True(t, chat.RoleSystem.Valid())
	assert.False(t, chat.Role("tool").Valid())
}
