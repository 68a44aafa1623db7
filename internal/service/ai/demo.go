package ai

import (
	"fmt"
	"strings"
)

type demoTopic struct {
	keywords []string
	reply    string
}

var demoTopics = []demoTopic{
	{
		keywords: []string{"hello", "hi", "hey", "howdy", "greetings"},
		reply:    "Hey there! I'm QaderiChat and I'm happy to chat about anything. What's on your mind today?",
	},
	{
		keywords: []string{"how are you", "how's it going", "what's up"},
		reply:    "I'm doing great, thanks for asking! How about you? What's been the highlight of your day so far?",
	},
	{
		keywords: []string{"music", "song", "band", "album"},
		reply:    "Music is such a universal language! What kind of music speaks to you lately?",
	},
	{
		keywords: []string{"movie", "film", "cinema", "tv show"},
		reply:    "Movies can take us anywhere. Do you prefer thought-provoking films or pure fun?",
	},
	{
		keywords: []string{"book", "novel", "author", "read"},
		reply:    "Books are portable adventures. What have you been reading recently?",
	},
	{
		keywords: []string{"technology", "tech", "computer", "future"},
		reply:    "We live in a fascinating time for technology. Which part of it excites you most?",
	},
	{
		keywords: []string{"joke", "funny", "laugh"},
		reply:    "Why don't scientists trust atoms? Because they make up everything! What makes you laugh?",
	},
	{
		keywords: []string{"help", "what can you", "what do you do"},
		reply:    "I'm here for whatever conversation you need: deep topics, advice, or just a friendly chat.",
	},
}

const demoDefault = "That's interesting! Tell me more about it. I'd love to hear your thoughts."

const demoNotice = "\n\n(Demo mode: configure an API key for %s to get real answers.)"

// demoReply answers from a fixed keyword table when no API key is configured.
func demoReply(userText string, provider Kind) Reply {
	lower := strings.ToLower(userText)
	text := demoDefault
	for _, topic := range demoTopics {
		if containsAny(lower, topic.keywords) {
			text = topic.reply
			break
		}
	}

	return Reply{
		Text:         text + fmt.Sprintf(demoNotice, provider.Label()),
		Model:        "demo",
		FinishReason: "demo",
		Demo:         true,
	}
}

func containsAny(text string, keywords []string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	})
	for _, keyword := range keywords {
		if strings.Contains(keyword, " ") {
			if strings.Contains(text, keyword) {
				return true
			}
			continue
		}
		for _, word := range words {
			if word == keyword {
				return true
			}
		}
	}
	return false
}
