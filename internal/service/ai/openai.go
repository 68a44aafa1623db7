package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
)

func (p *Provider) generateOpenAI(ctx context.Context, turns []*schema.Message) (Reply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		if turn == nil || turn.Content == "" {
			continue
		}
		switch turn.Role {
		case schema.System:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case schema.User:
			messages = append(messages, openai.UserMessage(turn.Content))
		case schema.Assistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		MaxTokens:   openai.Int(p.maxTokens),
		Temperature: openai.Float(p.temperature),
	}

	response, err := p.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}

	if len(response.Choices) == 0 {
		return Reply{}, malformed(OpenAI, "no choices in response %s", response.ID)
	}
	choice := response.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return Reply{}, malformed(OpenAI, "empty message content in response %s", response.ID)
	}

	return Reply{
		Text:         choice.Message.Content,
		Model:        string(response.Model),
		FinishReason: string(choice.FinishReason),
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}, nil
}
