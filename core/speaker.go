package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/events"
	"go.opentelemetry.io/otel/attribute"
)

var errEmptyAudio = errors.New("synthesizer returned no audio")

// speechJob speaks sentences one after another under one generation id.
type speechJob struct {
	cycle        *utteranceCycle
	generationID uint64
	role         utteranceRole
	sentences    []string
	// after, when set, holds back the first playback until it is closed.
	after <-chan struct{}
	// done, when set, is closed once the job stopped touching the player.
	done chan struct{}
}

type synthesizedSentence struct {
	text string
	clip audio.Clip
	err  error
}

func (o *Orchestrator) startSpeech(job *speechJob) {
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()

		completed, err := func() (completed bool, err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					completed, err = false, newFailure(PlaybackFailure, fmt.Errorf("speech worker panicked: %v", recovered))
				}
			}()
			return o.speak(job.cycle.ctx, job)
		}()

		if job.done != nil {
			close(job.done)
		}
		o.post(speechDoneItem{job: job, completed: completed, err: err})
	}()
}

// speak synthesizes the next sentence while the current one plays. Every
// playback start is checked against the current generation id, so a
// superseded job stops at its next sentence at the latest.
func (o *Orchestrator) speak(ctx context.Context, job *speechJob) (bool, error) {
	ctx, span := tracer.Start(ctx, "speak "+string(job.role))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("generation.id", int64(job.generationID)),
		attribute.Int("speech.sentences", len(job.sentences)),
	)

	if o.synthesizer == nil {
		return false, recordSpanError(span, newFailure(SynthesisFailure, errors.New("no synthesizer configured")))
	}
	if o.player == nil {
		return false, recordSpanError(span, newFailure(PlaybackFailure, errors.New("no player configured")))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for sentence := range o.synthesizeAll(ctx, job) {
		if sentence.err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, recordSpanError(span, newFailure(SynthesisFailure, sentence.err))
		}

		if job.after != nil {
			select {
			case <-job.after:
			case <-ctx.Done():
				return false, nil
			}
		}

		playback, err := o.slot.dispatch(job.generationID, spokenUtterance{role: job.role, text: sentence.text},
			func() (*audio.Playback, error) { return o.player.Play(ctx, sentence.clip) })
		if errors.Is(err, errStalePlayback) {
			span.AddEvent("superseded before playback")
			return false, nil
		}
		if err != nil {
			return false, recordSpanError(span, newFailure(PlaybackFailure, err))
		}

		o.emitter.emit(events.NewAssistantPlaybackStarted(job.cycle.id, string(job.role), sentence.text))
		completed, err := playback.Wait()
		o.emitter.emit(events.NewAssistantPlaybackEnded(job.cycle.id, string(job.role), sentence.text, completed && err == nil))

		if ctx.Err() != nil {
			return false, nil
		}
		if err != nil {
			return false, recordSpanError(span, newFailure(PlaybackFailure, err))
		}
		if !completed {
			span.AddEvent("playback stopped")
			return false, nil
		}
	}

	if ctx.Err() != nil || job.generationID != o.slot.current() {
		return false, nil
	}
	return true, nil
}

func (o *Orchestrator) synthesizeAll(ctx context.Context, job *speechJob) <-chan synthesizedSentence {
	sentences := make(chan synthesizedSentence, 1)
	go func() {
		defer close(sentences)
		for _, text := range job.sentences {
			if job.generationID != o.slot.current() {
				return
			}

			sentence := synthesizedSentence{text: text}
			func() {
				defer func() {
					if recovered := recover(); recovered != nil {
						sentence.err = fmt.Errorf("synthesizer panicked: %v", recovered)
					}
				}()
				sentence.clip, sentence.err = o.synthesizer.Synthesize(ctx, text)
			}()
			if sentence.err == nil && sentence.clip.IsEmpty() {
				sentence.err = errEmptyAudio
			}

			select {
			case sentences <- sentence:
			case <-ctx.Done():
				return
			}
			if sentence.err != nil {
				return
			}
		}
	}()
	return sentences
}
