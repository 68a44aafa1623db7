package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaderichat/backend/internal/model/chat"
	"github.com/qaderichat/backend/internal/service/ai"
	chatservice "github.com/qaderichat/backend/internal/service/chat"
)

type fakeGenerator struct {
	reply ai.Reply
	err   error
	calls [][]*schema.Message
}

func (f *fakeGenerator) Kind() ai.Kind { return ai.OpenAI }

func (f *fakeGenerator) Generate(_ context.Context, turns []*schema.Message) (ai.Reply, error) {
	f.calls = append(f.calls, turns)
	if f.err != nil {
		return ai.Reply{}, f.err
	}
	return f.reply, nil
}

func newService(gen *fakeGenerator, historyLimit int) (*chatservice.Service, *chat.MemoryStore) {
	store := chat.NewMemoryStore()
	svc := chatservice.NewService(store, gen, chatservice.Config{
		SystemPrompt: "system prompt",
		HistoryLimit: historyLimit,
	}, nil)
	return svc, store
}

func TestSendAppendsUserThenAssistant(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "Hello! How can I help you?", Model: "gpt-test", InputTokens: 5, OutputTokens: 7}}
	svc, _ := newService(gen, 10)
	ctx := context.Background()

	result, err := svc.Send(ctx, "browser-1", "  Hello there  ")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Hello there", result.UserMessage.Content)
	assert.Equal(t, "Hello! How can I help you?", result.AssistantMessage.Content)
	assert.NotEmpty(t, result.AssistantMessage.ID)
	assert.Equal(t, "gpt-test", result.Metadata["model"])
	assert.Equal(t, "Hello there", result.Session.Title)

	messages, err := svc.Messages(ctx, "browser-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	assert.Equal(t, "gpt-test", messages[1].Metadata["model"])

	require.Len(t, gen.calls, 1)
	turns := gen.calls[0]
	require.Len(t, turns, 2)
	assert.Equal(t, schema.System, turns[0].Role)
	assert.Equal(t, "Hello there", turns[1].Content)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	gen := &fakeGenerator{}
	svc, store := newService(gen, 10)

	_, err := svc.Send(context.Background(), "browser-1", "   \n\t")
	assert.ErrorIs(t, err, chatservice.ErrEmptyMessage)
	assert.Empty(t, gen.calls)

	_, err = store.FindSessionByKey(context.Background(), "browser-1")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestSendProviderFailureKeepsUserMessageOnly(t *testing.T) {
	gen := &fakeGenerator{err: &ai.Error{Kind: ai.ErrRateLimit, Provider: ai.OpenAI, Status: 429, Err: errors.New("slow down")}}
	svc, _ := newService(gen, 10)
	ctx := context.Background()

	result, err := svc.Send(ctx, "browser-1", "hello")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, ai.ErrRateLimit, result.ErrorKind)
	assert.Equal(t, ai.FallbackMessage(ai.ErrRateLimit), result.AssistantMessage.Content)
	assert.Empty(t, result.AssistantMessage.ID)

	messages, err := svc.Messages(ctx, "browser-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestSendCallsProviderOncePerMessage(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	svc, _ := newService(gen, 10)

	result, err := svc.Send(context.Background(), "browser-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, ai.ErrNetwork, result.ErrorKind)
	assert.Len(t, gen.calls, 1)
}

func TestSendBoundsContextWindow(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "ok"}}
	svc, _ := newService(gen, 4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Send(ctx, "browser-1", "message")
		require.NoError(t, err)
	}

	last := gen.calls[len(gen.calls)-1]
	// system + at most 4 stored turns
	assert.LessOrEqual(t, len(last), 5)
	assert.Equal(t, schema.System, last[0].Role)
	assert.Equal(t, schema.User, last[1].Role)
	assert.Equal(t, schema.User, last[len(last)-1].Role)
}

func TestTitleOnlySetOnFirstExchange(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "ok"}}
	svc, store := newService(gen, 10)
	ctx := context.Background()

	_, err := svc.Send(ctx, "browser-1", "first question about go modules please now")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "browser-1", "second question")
	require.NoError(t, err)

	session, err := store.FindSessionByKey(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "first question about go modules", session.Title)
}

func TestClearRemovesMessagesButKeepsSession(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "ok"}}
	svc, store := newService(gen, 10)
	ctx := context.Background()

	first, err := svc.Send(ctx, "browser-1", "hello")
	require.NoError(t, err)

	cleared, err := svc.Clear(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, cleared.ID)
	assert.Equal(t, chat.DefaultTitle, cleared.Title)

	messages, err := svc.Messages(ctx, "browser-1", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	session, err := store.GetSession(ctx, first.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultTitle, session.Title)
}

func TestClearUnknownSessionSucceeds(t *testing.T) {
	svc, _ := newService(&fakeGenerator{}, 10)
	_, err := svc.Clear(context.Background(), "fresh-browser")
	assert.NoError(t, err)
}

func TestMessagesUnknownKeyIsEmpty(t *testing.T) {
	svc, _ := newService(&fakeGenerator{}, 10)
	messages, err := svc.Messages(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestSessionMessagesInInsertionOrder(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "reply"}}
	svc, _ := newService(gen, 10)
	ctx := context.Background()

	var sessionID string
	for _, text := range []string{"one", "two", "three"} {
		result, err := svc.Send(ctx, "browser-1", text)
		require.NoError(t, err)
		sessionID = result.Session.ID
	}

	messages, err := svc.SessionMessages(ctx, sessionID)
	require.NoError(t, err)
	got := make([]string, 0, len(messages))
	for _, m := range messages {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"one", "reply", "two", "reply", "three", "reply"}, got)

	_, err = svc.SessionMessages(ctx, "missing")
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestSessionsListsEveryActiveSession(t *testing.T) {
	gen := &fakeGenerator{reply: ai.Reply{Text: "ok"}}
	svc, _ := newService(gen, 10)
	ctx := context.Background()

	_, err := svc.Send(ctx, "browser-1", "alpha")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "browser-2", "beta")
	require.NoError(t, err)

	sessions, err := svc.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestGenerateTitle(t *testing.T) {
	assert.Equal(t, "one two three four five", chatservice.GenerateTitle("one two three four five six seven"))
	assert.Equal(t, "Chat with QaderiChat", chatservice.GenerateTitle("   "))

	long := strings.Repeat("a", 60)
	title := chatservice.GenerateTitle(long)
	assert.Len(t, title, 50)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, chatservice.DefaultMessageLimit, chatservice.ClampLimit(0))
	assert.Equal(t, 20, chatservice.ClampLimit(20))
	assert.Equal(t, chatservice.MaxMessageLimit, chatservice.ClampLimit(10_000))
}
