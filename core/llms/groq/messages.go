package groq

import (
	"github.com/jiroshimaya/fastvoicechat/core/llms"
	"github.com/jinzhu/copier"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	messageRoleSystem = "system"
	messageRoleUser   = "user"
)

func toMessages(instructions string, history []llms.Message, prompt string) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: instructions})
	}

	var converted []message
	if err := copier.Copy(&converted, history); err != nil {
		logger.Warn("failed to convert history messages", "error", err)
	}
	for _, msg := range converted {
		if msg.Content != "" {
			messages = append(messages, msg)
		}
	}

	if prompt != "" {
		messages = append(messages, message{Role: messageRoleUser, Content: prompt})
	}
	return messages
}

type requestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	Stream         bool                `json:"stream,omitempty"`
	MaxTokens      int                 `json:"max_completion_tokens,omitempty"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type responseUsage struct {
	QueueTime        float64 `json:"queue_time"`
	PromptTokens     int     `json:"prompt_tokens"`
	PromptTime       float64 `json:"prompt_time"`
	CompletionTokens int     `json:"completion_tokens"`
	CompletionTime   float64 `json:"completion_time"`
	TotalTokens      int     `json:"total_tokens"`
	TotalTime        float64 `json:"total_time"`
}

func toUsage(usage *responseUsage) llms.Usage {
	converted := llms.Usage{}
	if usage == nil {
		return converted
	}
	if err := copier.Copy(&converted, usage); err != nil {
		logger.Warn("failed to convert usage", "error", err)
	}
	converted.InputTokens = usage.PromptTokens
	converted.OutputTokens = usage.CompletionTokens
	return converted
}
