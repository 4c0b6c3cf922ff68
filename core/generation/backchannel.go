package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jiroshimaya/fastvoicechat/core/llms"
)

const defaultBackchannelMaxRunes = 20

// BackchannelGenerator streams a completion and keeps only its first phrase.
type BackchannelGenerator struct {
	client     llms.StreamingClient
	prompt     string
	separators string
	maxRunes   int
}

type BackchannelOption func(*BackchannelGenerator)

func WithBackchannelPrompt(prompt string) BackchannelOption {
	return func(g *BackchannelGenerator) {
		g.prompt = prompt
	}
}

func WithBackchannelSeparators(separators string) BackchannelOption {
	return func(g *BackchannelGenerator) {
		g.separators = separators
	}
}

// WithBackchannelMaxRunes caps the backchannel length when the model never
// produces a separator.
func WithBackchannelMaxRunes(maxRunes int) BackchannelOption {
	return func(g *BackchannelGenerator) {
		g.maxRunes = maxRunes
	}
}

func NewBackchannelGenerator(client llms.StreamingClient, opts ...BackchannelOption) *BackchannelGenerator {
	generator := &BackchannelGenerator{
		client:     client,
		prompt:     DefaultBackchannelPrompt,
		separators: BackchannelSeparators,
		maxRunes:   defaultBackchannelMaxRunes,
	}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

func (g *BackchannelGenerator) Submit(ctx context.Context, request Request, deliver func(Result)) {
	submit(ctx, request, deliver, g.generate)
}

func (g *BackchannelGenerator) generate(ctx context.Context, request Request) (string, bool, error) {
	if g.client == nil {
		return "", false, fmt.Errorf("no llm client configured")
	}

	stream := g.client.PromptWithStream(ctx, request.SourceText,
		llms.WithSystemPrompt(g.prompt),
		llms.WithMessages(request.History...),
	)

	var content strings.Builder
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return "", false, err
		}
		contentChunk, ok := chunk.(llms.StreamContentChunk)
		if !ok {
			continue
		}

		content.WriteString(contentChunk.Content())
		if phrase, found := cutAtSeparator(content.String(), g.separators); found {
			return truncateRunes(strings.TrimSpace(phrase), g.maxRunes), false, nil
		}
	}

	return truncateRunes(strings.TrimSpace(content.String()), g.maxRunes), false, nil
}

// ConstrainedBackchannelGenerator asks a structured output model for the
// backchannel as a JSON object.
type ConstrainedBackchannelGenerator struct {
	client   llms.StructuredClient
	prompt   string
	maxRunes int
}

type backchannelResponse struct {
	Backchannel string `json:"backchannel" jsonschema:"description=A short acknowledgement said while the user is still speaking"`
}

func NewConstrainedBackchannelGenerator(client llms.StructuredClient, prompt string) *ConstrainedBackchannelGenerator {
	if prompt == "" {
		prompt = DefaultBackchannelPrompt
	}
	return &ConstrainedBackchannelGenerator{client: client, prompt: prompt, maxRunes: defaultBackchannelMaxRunes}
}

func (g *ConstrainedBackchannelGenerator) Submit(ctx context.Context, request Request, deliver func(Result)) {
	submit(ctx, request, deliver, g.generate)
}

func (g *ConstrainedBackchannelGenerator) generate(ctx context.Context, request Request) (string, bool, error) {
	if g.client == nil {
		return "", false, fmt.Errorf("no llm client configured")
	}

	var response backchannelResponse
	if err := g.client.PromptWithSchema(ctx, request.SourceText, &response,
		llms.WithSystemPrompt(g.prompt),
		llms.WithMessages(request.History...),
	); err != nil {
		return "", false, err
	}
	return truncateRunes(strings.TrimSpace(response.Backchannel), g.maxRunes), false, nil
}
