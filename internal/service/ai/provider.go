// Package ai relays conversation turns to one of the two supported vendor
// APIs. The vendor is fixed at construction time; there is no fallback
// from one vendor to the other.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/qaderichat/backend/internal/config"
)

// Kind names a supported vendor.
type Kind string

const (
	OpenAI    Kind = "openai"
	Anthropic Kind = "anthropic"
)

// Default models per vendor when AI_MODEL is empty.
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-3-haiku-20240307"
)

// ParseKind maps a configured provider name onto a Kind. "claude" is an
// alias of "anthropic".
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return OpenAI, nil
	case "anthropic", "claude":
		return Anthropic, nil
	default:
		return "", fmt.Errorf("unsupported AI provider %q (want openai or anthropic)", name)
	}
}

// Label is the human readable vendor name.
func (k Kind) Label() string {
	switch k {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Claude"
	default:
		return string(k)
	}
}

// Reply is a generated assistant turn.
type Reply struct {
	Text         string
	Model        string
	FinishReason string
	InputTokens  int64
	OutputTokens int64
	Demo         bool
}

// Metadata renders the reply details stored next to the assistant message.
func (r Reply) Metadata(provider Kind) map[string]any {
	meta := map[string]any{
		"provider":      string(provider),
		"model":         r.Model,
		"input_tokens":  r.InputTokens,
		"output_tokens": r.OutputTokens,
		"tokens_used":   r.InputTokens + r.OutputTokens,
	}
	if r.FinishReason != "" {
		meta["finish_reason"] = r.FinishReason
	}
	if r.Demo {
		meta["demo"] = true
	}
	return meta
}

// Provider calls the configured vendor.
type Provider struct {
	kind        Kind
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	demo        bool

	openai    *openai.Client
	anthropic *anthropic.Client
}

// New builds the adapter for cfg.Provider. A missing or placeholder API key
// puts the adapter in demo mode instead of failing.
func New(cfg config.AIConfig) (*Provider, error) {
	kind, err := ParseKind(cfg.Provider)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		kind:        kind,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}

	switch kind {
	case OpenAI:
		if p.model == "" {
			p.model = DefaultOpenAIModel
		}
		if !config.UsableKey(cfg.OpenAIKey) {
			p.demo = true
			break
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(cfg.OpenAIKey),
			openaioption.WithMaxRetries(0),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client := openai.NewClient(opts...)
		p.openai = &client
	case Anthropic:
		if p.model == "" {
			p.model = DefaultAnthropicModel
		}
		if !config.UsableKey(cfg.AnthropicKey) {
			p.demo = true
			break
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(cfg.AnthropicKey),
			anthropicoption.WithMaxRetries(0),
		}
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.AnthropicBaseURL))
		}
		client := anthropic.NewClient(opts...)
		p.anthropic = &client
	}

	return p, nil
}

// Kind returns the configured vendor.
func (p *Provider) Kind() Kind { return p.kind }

// Model returns the model name sent to the vendor.
func (p *Provider) Model() string { return p.model }

// Demo reports whether the adapter answers without calling a vendor.
func (p *Provider) Demo() bool { return p.demo }

// Generate sends turns to the vendor once and returns the reply. Failures
// are always *Error.
func (p *Provider) Generate(ctx context.Context, turns []*schema.Message) (Reply, error) {
	if len(turns) == 0 {
		return Reply{}, &Error{Kind: ErrMalformedResponse, Provider: p.kind, Err: fmt.Errorf("no turns to send")}
	}

	if p.demo {
		return demoReply(lastUserText(turns), p.kind), nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		reply Reply
		err   error
	)
	switch p.kind {
	case OpenAI:
		reply, err = p.generateOpenAI(ctx, turns)
	case Anthropic:
		reply, err = p.generateAnthropic(ctx, turns)
	default:
		err = fmt.Errorf("unsupported provider %q", p.kind)
	}
	if err != nil {
		return Reply{}, classify(p.kind, err)
	}
	return reply, nil
}

func lastUserText(turns []*schema.Message) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i] != nil && turns[i].Role == schema.User {
			return turns[i].Content
		}
	}
	return ""
}
