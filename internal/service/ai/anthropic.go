package ai

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cloudwego/eino/schema"
)

func (p *Provider) generateAnthropic(ctx context.Context, turns []*schema.Message) (Reply, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(turns))

	for _, turn := range turns {
		if turn == nil || turn.Content == "" {
			continue
		}
		switch turn.Role {
		case schema.System:
			// System prompts travel outside the message list.
			system = append(system, anthropic.TextBlockParam{Text: turn.Content})
		case schema.User:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case schema.Assistant:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.Content)},
			})
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    messages,
		System:      system,
		Temperature: anthropic.Float(p.temperature),
	}

	response, err := p.anthropic.Messages.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}

	var text strings.Builder
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Reply{}, malformed(Anthropic, "no text content in message %s", response.ID)
	}

	return Reply{
		Text:         text.String(),
		Model:        string(response.Model),
		FinishReason: string(response.StopReason),
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}, nil
}
