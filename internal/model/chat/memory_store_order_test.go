package chat

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSessionsBreaksTiesByID(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for _, key := range []string{"k1", "k2", "k3", "k4", "k5"} {
		session, err := store.GetOrCreateSession(ctx, key)
		require.NoError(t, err)
		ids = append(ids, session.ID)
	}
	sort.Strings(ids)

	for i := 0; i < 10; i++ {
		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		got := make([]string, 0, len(sessions))
		for _, s := range sessions {
			got = append(got, s.ID)
		}
		assert.Equal(t, ids, got)
	}

	store.now = func() time.Time { return fixed.Add(time.Minute) }
	newest, err := store.GetOrCreateSession(ctx, "k6")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, sessions[0].ID)
}
