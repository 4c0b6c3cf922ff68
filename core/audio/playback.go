package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Playback tracks one in-flight playing operation. Stop is cooperative: the
// goroutine feeding the device checks it between chunks.
type Playback struct {
	stopRequested chan struct{}
	stopOnce      sync.Once

	done       chan struct{}
	finishOnce sync.Once
	completed  bool
	err        error
}

func NewPlayback() *Playback {
	return &Playback{
		stopRequested: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Stop asks the playback to end. Calling it after the playback finished, or
// more than once, does nothing.
func (p *Playback) Stop() {
	select {
	case <-p.done:
		return
	default:
	}

	p.stopOnce.Do(func() { close(p.stopRequested) })
}

func (p *Playback) StopRequested() <-chan struct{} {
	return p.stopRequested
}

// Finish records the outcome. Only the first call counts.
func (p *Playback) Finish(completed bool, err error) {
	p.finishOnce.Do(func() {
		p.completed = completed
		p.err = err
		close(p.done)
	})
}

func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the playback finished and reports whether every chunk
// was played.
func (p *Playback) Wait() (bool, error) {
	<-p.done
	return p.completed, p.err
}

// PlayChunked feeds clip to write one chunk at a time on a new goroutine and
// returns the handle for it. write is expected to block for roughly the
// duration of the chunk it was given.
func PlayChunked(ctx context.Context, clip Clip, chunkDuration time.Duration, playing *atomic.Int32, write func([]byte) error) *Playback {
	playback := NewPlayback()
	chunks := clip.Chunks(chunkDuration)

	if playing != nil {
		playing.Add(1)
	}
	finish := func(completed bool, err error) {
		if playing != nil {
			playing.Add(-1)
		}
		playback.Finish(completed, err)
	}

	go func() {
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				finish(false, ctx.Err())
				return
			case <-playback.StopRequested():
				finish(false, nil)
				return
			default:
			}

			if err := write(chunk); err != nil {
				finish(false, err)
				return
			}
		}
		finish(true, nil)
	}()

	return playback
}
