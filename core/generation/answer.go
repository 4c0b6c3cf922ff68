package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jiroshimaya/fastvoicechat/core/llms"
)

// AnswerGenerator streams the complete answer that follows the backchannel.
type AnswerGenerator struct {
	client llms.StreamingClient
	prompt string
}

type AnswerOption func(*AnswerGenerator)

func WithAnswerPrompt(prompt string) AnswerOption {
	return func(g *AnswerGenerator) {
		g.prompt = prompt
	}
}

func NewAnswerGenerator(client llms.StreamingClient, opts ...AnswerOption) *AnswerGenerator {
	generator := &AnswerGenerator{
		client: client,
		prompt: DefaultAnswerPrompt,
	}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

func (g *AnswerGenerator) Submit(ctx context.Context, request Request, deliver func(Result)) {
	submit(ctx, request, deliver, g.generate)
}

// answerMessages orders the prompt as history, the user's utterance and then
// the backchannel already spoken, so the model continues after it.
func answerMessages(request Request) []llms.Message {
	messages := append([]llms.Message{}, request.History...)
	messages = append(messages, llms.UserMessage(request.SourceText))
	if request.Backchannel != "" {
		messages = append(messages, llms.AssistantMessage(request.Backchannel))
	}
	return messages
}

func (g *AnswerGenerator) generate(ctx context.Context, request Request) (string, bool, error) {
	if g.client == nil {
		return "", false, fmt.Errorf("no llm client configured")
	}

	stream := g.client.PromptWithStream(ctx, "",
		llms.WithSystemPrompt(g.prompt),
		llms.WithMessages(answerMessages(request)...),
	)

	answer, err := llms.Collect(ctx, stream)
	if err != nil {
		return "", false, err
	}

	answer = strings.TrimSpace(answer)
	if answer == SkipMarker {
		logger.Debug("answer skipped", "generation_id", request.GenerationID)
		return "", true, nil
	}
	return answer, false, nil
}
