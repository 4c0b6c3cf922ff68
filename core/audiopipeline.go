package orchestration

import (
	"context"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
	"github.com/jiroshimaya/fastvoicechat/core/vad"
)

const (
	segmenterQueueName   = "segmenter"
	transcriberQueueName = "transcriber"
)

type activityReporter interface {
	Activity() *vad.Activity
}

// onsetCounter reads speech onsets from the segmenter when it tracks them
// itself and from the orchestrator's own count otherwise.
func (o *Orchestrator) onsetCounter() func() uint64 {
	if reporter, ok := o.segmenter.(activityReporter); ok {
		o.segmenterOnsets = true
		return reporter.Activity().Onsets
	}
	return o.onsets.Load
}

func (o *Orchestrator) newFrameQueue(name string) *FrameQueue {
	queue := NewFrameQueue(o.config.FrameQueueCapacity, o.config.FrameQueuePolicy)
	dropped := o.metrics.droppedFrames.WithLabelValues(name)
	queue.onDrop = dropped.Inc
	return queue
}

// runCapture cuts device audio into frames and fans them out to the frame
// queues. A capture error is fatal for every later cycle.
func (o *Orchestrator) runCapture(ctx context.Context) error {
	defer func() {
		for _, queue := range o.queues {
			queue.Close()
		}
	}()

	framer := audio.NewFramer(o.source.EncodingInfo(), audio.DefaultFrameDuration)
	err := o.source.Capture(ctx, func(data []byte) {
		for _, frame := range framer.Push(data, time.Now()) {
			for _, queue := range o.queues {
				queue.Push(ctx, frame)
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		failure := newFailure(CaptureFailure, err)
		logger.Error("audio capture failed", "error", err)
		o.addWorkerErr(failure)
		o.post(captureFailedItem{err: failure})
	}
	return nil
}

func (o *Orchestrator) runSegmenter(ctx context.Context, queue *FrameQueue) error {
	failed := false
	for {
		frame, ok := queue.Pop(ctx)
		if !ok {
			return nil
		}

		event, err := o.segmenter.Segment(frame)
		if err != nil {
			if !failed {
				failed = true
				o.detector.HandleSegmentationFailure(newFailure(SegmentationFailure, err))
			}
			continue
		}

		if event.Boundary == vad.BoundaryNone {
			continue
		}
		if event.Boundary == vad.BoundarySpeechStart && !o.segmenterOnsets {
			o.onsets.Add(1)
		}
		o.detector.HandleSegment(event)
	}
}

func (o *Orchestrator) runTranscriberFeed(ctx context.Context, queue *FrameQueue) error {
	failing := false
	for {
		frame, ok := queue.Pop(ctx)
		if !ok {
			return nil
		}

		if err := o.transcriber.SendAudio(frame.Data); err != nil {
			if !failing {
				logger.Warn("failed to send audio to transcriber", "error", err)
			}
			failing = true
			continue
		}
		failing = false
	}
}
