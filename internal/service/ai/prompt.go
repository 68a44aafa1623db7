package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/qaderichat/backend/internal/model/chat"
)

var contextTemplate = prompt.FromMessages(
	schema.FString,
	schema.SystemMessage("{system}"),
	schema.MessagesPlaceholder("history", false),
)

// BuildContext turns the most recent limit messages of a transcript into the
// ordered turns sent to the vendor: the system prompt followed by history
// that starts with a user turn.
func BuildContext(ctx context.Context, systemPrompt string, messages []chat.Message, limit int) ([]*schema.Message, error) {
	history := historyTurns(messages, limit)
	turns, err := contextTemplate.Format(ctx, map[string]any{
		"system":  systemPrompt,
		"history": history,
	})
	if err != nil {
		return nil, fmt.Errorf("format context template: %w", err)
	}
	return turns, nil
}

func historyTurns(messages []chat.Message, limit int) []*schema.Message {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			// Vendors expect the conversation to open with a user turn.
			if len(history) == 0 {
				continue
			}
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
