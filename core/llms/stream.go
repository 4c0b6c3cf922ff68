package llms

import (
	"context"
	"strings"
)

// StreamingClient prompts a model and streams its answer back.
type StreamingClient interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...PromptOption) Stream
}

// StructuredClient prompts a model for a JSON object matching the schema of
// output, which must be a pointer, and decodes the answer into it.
type StructuredClient interface {
	PromptWithSchema(ctx context.Context, prompt string, output any, opts ...PromptOption) error
}

type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// Timings are reported in seconds and might be approximations.
	QueueTime      float64
	PromptTime     float64
	CompletionTime float64
	TotalTime      float64
}

// Collect reads the whole stream and returns the concatenated content.
func Collect(ctx context.Context, stream Stream) (string, error) {
	var content strings.Builder
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return content.String(), err
		}
		if contentChunk, ok := chunk.(StreamContentChunk); ok {
			content.WriteString(contentChunk.Content())
		}
	}
	return content.String(), nil
}

type contentChunk struct {
	finishReason *string
	content      string
}

// NewContentChunk builds a content chunk for clients and test doubles.
func NewContentChunk(content string, finishReason *string) StreamContentChunk {
	return contentChunk{finishReason: finishReason, content: content}
}

func (c contentChunk) FinishReason() *string {
	return c.finishReason
}

func (c contentChunk) Content() string {
	return c.content
}

type usageChunk struct {
	finishReason *string
	usage        Usage
}

func NewUsageChunk(usage Usage, finishReason *string) StreamUsageChunk {
	return usageChunk{finishReason: finishReason, usage: usage}
}

func (c usageChunk) FinishReason() *string {
	return c.finishReason
}

func (c usageChunk) Usage() Usage {
	return c.usage
}
