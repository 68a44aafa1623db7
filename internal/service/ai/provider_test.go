package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaderichat/backend/internal/config"
)

func testConfig(provider, baseURL string) config.AIConfig {
	return config.AIConfig{
		Provider:         provider,
		OpenAIKey:        "sk-test",
		OpenAIBaseURL:    baseURL,
		AnthropicKey:     "sk-ant-test",
		AnthropicBaseURL: baseURL,
		MaxTokens:        128,
		Temperature:      0.5,
		Timeout:          5 * time.Second,
	}
}

func sampleTurns() []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage("be nice"),
		schema.UserMessage("hello"),
		schema.AssistantMessage("hi!", nil),
		schema.UserMessage("how are you?"),
	}
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]Kind{
		"openai":    OpenAI,
		" OpenAI ":  OpenAI,
		"anthropic": Anthropic,
		"claude":    Anthropic,
		"CLAUDE":    Anthropic,
	} {
		got, err := ParseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseKind("openrouter")
	assert.Error(t, err)
}

func TestNewDefaultsModelPerVendor(t *testing.T) {
	p, err := New(config.AIConfig{Provider: "openai", OpenAIKey: "sk", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, p.Model())
	assert.False(t, p.Demo())

	p, err = New(config.AIConfig{Provider: "claude", AnthropicKey: "sk", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, Anthropic, p.Kind())
	assert.Equal(t, DefaultAnthropicModel, p.Model())

	_, err = New(config.AIConfig{Provider: "gemini"})
	assert.Error(t, err)
}

func TestDemoModeWithoutKey(t *testing.T) {
	p, err := New(config.AIConfig{Provider: "openai", OpenAIKey: "your_openai_api_key_here", MaxTokens: 10})
	require.NoError(t, err)
	require.True(t, p.Demo())

	reply, err := p.Generate(context.Background(), []*schema.Message{schema.UserMessage("Tell me a joke")})
	require.NoError(t, err)
	assert.True(t, reply.Demo)
	assert.Contains(t, reply.Text, "atoms")
	assert.Contains(t, reply.Text, "OpenAI")
	assert.Equal(t, true, reply.Metadata(OpenAI)["demo"])
}

func TestNewLeavesDemoNoticeToCaller(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	p, err := New(config.AIConfig{Provider: "anthropic", MaxTokens: 10})
	require.NoError(t, err)
	require.True(t, p.Demo())
	assert.Empty(t, buf.String())
}

func TestDemoReplyMatchesWholeWords(t *testing.T) {
	reply := demoReply("this is nothing special", Anthropic)
	assert.True(t, strings.HasPrefix(reply.Text, demoDefault))

	reply = demoReply("Hi there", Anthropic)
	assert.Contains(t, reply.Text, "QaderiChat")
}

func TestGenerateRejectsEmptyTurns(t *testing.T) {
	p, err := New(testConfig("openai", "http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), nil)
	assert.Equal(t, ErrMalformedResponse, KindOf(err))
}

func TestOpenAIGenerate(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "I'm great!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 4, "total_tokens": 24}
		}`))
	}))
	defer srv.Close()

	cfg := testConfig("openai", srv.URL)
	cfg.Model = "gpt-4o-mini"
	p, err := New(cfg)
	require.NoError(t, err)

	reply, err := p.Generate(context.Background(), sampleTurns())
	require.NoError(t, err)

	assert.Equal(t, "I'm great!", reply.Text)
	assert.Equal(t, "gpt-4o-mini", reply.Model)
	assert.Equal(t, "stop", reply.FinishReason)
	assert.EqualValues(t, 20, reply.InputTokens)
	assert.EqualValues(t, 4, reply.OutputTokens)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 128, captured.MaxTokens)
	roles := make([]string, 0, len(captured.Messages))
	for _, m := range captured.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)

	meta := reply.Metadata(OpenAI)
	assert.Equal(t, "openai", meta["provider"])
	assert.EqualValues(t, 24, meta["tokens_used"])
}

func TestOpenAIErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, ErrRateLimit},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, ErrNetwork},
		{"body is not json", http.StatusOK, `<html>not json`, ErrMalformedResponse},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, err := New(testConfig("openai", srv.URL))
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), sampleTurns())
			require.Error(t, err)

			var aiErr *Error
			require.True(t, errors.As(err, &aiErr))
			assert.Equal(t, tc.want, aiErr.Kind)
			assert.Equal(t, OpenAI, aiErr.Provider)
		})
	}
}

func TestGenerateNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	for _, provider := range []string{"openai", "anthropic"} {
		p, err := New(testConfig(provider, url))
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), sampleTurns())
		require.Error(t, err)
		assert.Equal(t, ErrNetwork, KindOf(err), provider)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-haiku-20240307",
			"content": [{"type": "text", "text": "Doing well, "}, {"type": "text", "text": "thanks!"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 30, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	p, err := New(testConfig("anthropic", srv.URL))
	require.NoError(t, err)

	reply, err := p.Generate(context.Background(), sampleTurns())
	require.NoError(t, err)

	assert.Equal(t, "Doing well, thanks!", reply.Text)
	assert.Equal(t, DefaultAnthropicModel, reply.Model)
	assert.Equal(t, "end_turn", reply.FinishReason)
	assert.EqualValues(t, 30, reply.InputTokens)

	assert.Equal(t, DefaultAnthropicModel, captured.Model)
	assert.Equal(t, 128, captured.MaxTokens)
	require.Len(t, captured.System, 1)
	assert.Equal(t, "be nice", captured.System[0].Text)
	roles := make([]string, 0, len(captured.Messages))
	for _, m := range captured.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"user", "assistant", "user"}, roles)
}

func TestAnthropicErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"forbidden", http.StatusForbidden, `{"type":"error","error":{"type":"permission_error","message":"nope"}}`, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, ErrRateLimit},
		{"body is not json", http.StatusOK, `<html>not json`, ErrMalformedResponse},
		{"empty content", http.StatusOK, `{"id":"msg_02","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, err := New(testConfig("anthropic", srv.URL))
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), sampleTurns())
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestFallbackMessagePerKind(t *testing.T) {
	assert.Contains(t, FallbackMessage(ErrAuth), "API configuration")
	assert.Contains(t, FallbackMessage(ErrRateLimit), "too many requests")
	assert.Contains(t, FallbackMessage(ErrNetwork), "technical difficulties")
	assert.NotEqual(t, FallbackMessage(ErrNetwork), FallbackMessage(ErrMalformedResponse))
}
