// Package generation produces the two kinds of spoken replies: a short
// backchannel while the user is still speaking and a complete answer once
// they finished.
package generation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var ErrGeneration = errors.New("generation failed")

type Kind string

const (
	KindBackchannel Kind = "backchannel"
	KindAnswer      Kind = "answer"
)

type Request struct {
	Kind         Kind
	SourceText   string
	GenerationID uint64
	// History is the conversation so far, oldest first.
	History []llms.Message
	// Backchannel is what was already said in this cycle, if anything.
	Backchannel string
}

type Result struct {
	GenerationID uint64
	Kind         Kind
	Text         string
	// Skipped reports that the model decided nothing more needs to be said.
	Skipped bool
	Err     error
	Latency time.Duration
}

// Generator delivers exactly one Result per submitted Request, carrying the
// request's GenerationID. Submit never blocks on the backend.
type Generator interface {
	Submit(ctx context.Context, request Request, deliver func(Result))
}

type generateFunc func(ctx context.Context, request Request) (text string, skipped bool, err error)

// submit runs generate on its own goroutine and delivers its outcome once,
// including when generate panics.
func submit(ctx context.Context, request Request, deliver func(Result), generate generateFunc) {
	started := time.Now()
	go func() {
		ctx, span := tracer.Start(ctx, "generate "+string(request.Kind))
		defer span.End()
		span.SetAttributes(
			attribute.Int64("generation.id", int64(request.GenerationID)),
			attribute.Int("generation.source_length", len([]rune(request.SourceText))),
		)

		result := Result{GenerationID: request.GenerationID, Kind: request.Kind}
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("generation panicked", "kind", request.Kind, "panic", recovered, "stack", string(debug.Stack()))
					result.Text = ""
					result.Skipped = false
					result.Err = fmt.Errorf("%w: panic: %v", ErrGeneration, recovered)
				}
			}()

			text, skipped, err := generate(ctx, request)
			result.Text = text
			result.Skipped = skipped
			if err != nil {
				result.Err = fmt.Errorf("%w: %w", ErrGeneration, err)
			}
		}()

		result.Latency = time.Since(started)
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.SetAttributes(attribute.Bool("generation.skipped", result.Skipped))
		latencyHistogram.Record(ctx, result.Latency.Seconds(),
			metric.WithAttributes(attribute.String("kind", string(request.Kind))))

		deliver(result)
	}()
}
