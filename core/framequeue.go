package orchestration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jiroshimaya/fastvoicechat/core/audio"
)

// FrameQueue is a bounded multi-producer multi-consumer queue of audio
// frames. What Push does when the queue is full depends on its policy.
type FrameQueue struct {
	frames chan audio.Frame
	policy QueuePolicy

	closed    chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
	onDrop  func()
}

func NewFrameQueue(capacity int, policy QueuePolicy) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		frames: make(chan audio.Frame, capacity),
		policy: policy,
		closed: make(chan struct{}),
	}
}

// Push enqueues frame and reports whether it was accepted. It returns false
// once the queue is closed or, under QueuePolicyBlock, when ctx is done
// before there was room.
func (q *FrameQueue) Push(ctx context.Context, frame audio.Frame) bool {
	select {
	case <-q.closed:
		return false
	default:
	}

	if q.policy == QueuePolicyBlock {
		select {
		case q.frames <- frame:
			return true
		case <-ctx.Done():
			return false
		case <-q.closed:
			return false
		}
	}

	for {
		select {
		case q.frames <- frame:
			return true
		default:
		}

		select {
		case <-q.frames:
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop()
			}
		default:
		}
	}
}

// Pop waits for the next frame. Frames queued before Close are still
// returned; after that Pop reports false.
func (q *FrameQueue) Pop(ctx context.Context) (audio.Frame, bool) {
	select {
	case frame := <-q.frames:
		return frame, true
	default:
	}

	select {
	case frame := <-q.frames:
		return frame, true
	case <-ctx.Done():
		return audio.Frame{}, false
	case <-q.closed:
		select {
		case frame := <-q.frames:
			return frame, true
		default:
			return audio.Frame{}, false
		}
	}
}

func (q *FrameQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *FrameQueue) Len() int {
	return len(q.frames)
}

func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}
