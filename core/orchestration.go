// Package orchestration runs the incremental turn-taking pipeline: it
// listens to the user, speaks a short backchannel while they are still
// talking, answers once they finished and stops talking when they barge in.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jiroshimaya/fastvoicechat/core/generation"
	"github.com/jiroshimaya/fastvoicechat/core/llms"
	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	"github.com/prometheus/client_golang/prometheus"
)

const inboxCapacity = 64

type Orchestrator struct {
	config Config

	source               AudioSource
	segmenter            SpeechSegmenter
	transcriber          StreamingTranscriber
	transcriptionOptions []speechtotext.TranscriptionOption
	backchannel          generation.Generator
	answer               generation.Generator
	synthesizer          Synthesizer
	player               Player

	callbacks  callbacks
	emitter    eventEmitter
	registerer prometheus.Registerer
	metrics    *metrics

	state    stateCell
	slot     playbackSlot
	signal   *InterruptSignal
	monitor  *InterruptMonitor
	detector *TurnDetector
	history  conversationHistory
	// onsets counts speech starts for segmenters that do not report an
	// Activity of their own.
	onsets          atomic.Uint64
	segmenterOnsets bool
	queues          []*FrameQueue

	inbox    chan inboxItem
	loopDone chan struct{}

	runCtx    context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	workers   sync.WaitGroup

	workerErrMu sync.Mutex
	workerErr   error

	// Owned by the inbox loop.
	cycle    *utteranceCycle
	listener *listenRequest
	fatalErr error
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:   DefaultConfig(),
		signal:   NewInterruptSignal(),
		inbox:    make(chan inboxItem, inboxCapacity),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	o.metrics = newMetrics(o.registerer)
	return o
}

// Start launches capture, segmentation, transcription, turn detection, the
// barge-in monitor and the event loop. They run until ctx is done or Close
// is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.config.Validate(); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, span := tracer.Start(ctx, "start orchestrator")
	defer span.End()

	o.runCtx, o.cancel = context.WithCancel(ctx)
	ctx = o.runCtx

	o.detector = NewTurnDetector(o.config, o.postTurnSignal)
	if o.segmenter == nil {
		logger.Warn("no speech segmenter configured, delimiting utterances by transcripts")
		o.detector.useTranscriptDriven()
	}

	o.monitor = newInterruptMonitor(o.signal, o.player, o.onsetCounter(), o.config.InterruptCheckInterval)
	o.monitor.onBargeIn = func(allowed bool) {
		o.metrics.bargeIns.WithLabelValues(strconv.FormatBool(allowed)).Inc()
	}
	if o.config.AllowInterrupt {
		o.monitor.Enable()
	}

	var segmenterQueue, transcriberQueue *FrameQueue
	if o.source != nil && o.segmenter != nil {
		segmenterQueue = o.newFrameQueue(segmenterQueueName)
		o.queues = append(o.queues, segmenterQueue)
	}
	if o.source != nil && o.transcriber != nil {
		transcriberQueue = o.newFrameQueue(transcriberQueueName)
		o.queues = append(o.queues, transcriberQueue)
	}

	if o.transcriber != nil {
		opts := o.detector.TranscriptionOptions()
		if o.source != nil {
			opts = append(opts, speechtotext.WithEncodingInfo(o.source.EncodingInfo()))
		}
		opts = append(opts, o.transcriptionOptions...)
		if err := o.transcriber.Transcribe(ctx, opts...); err != nil {
			recordSpanError(span, fmt.Errorf("failed to start transcription: %w", err))
			o.detector.HandleTranscriptionFailure(err)
		}
	} else {
		logger.Warn("no transcriber configured")
		o.detector.HandleTranscriptionFailure(errors.New("no transcriber configured"))
	}

	o.spawn(ctx, "event loop", o.runInbox)
	o.spawn(ctx, "turn detector", o.detector.Run)
	o.spawn(ctx, "interrupt monitor", o.monitor.Run)
	if o.source == nil {
		logger.Warn("no audio source configured")
		return nil
	}
	if segmenterQueue != nil {
		o.spawn(ctx, "segmenter", func(ctx context.Context) error { return o.runSegmenter(ctx, segmenterQueue) })
	}
	if transcriberQueue != nil {
		o.spawn(ctx, "transcriber feed", func(ctx context.Context) error { return o.runTranscriberFeed(ctx, transcriberQueue) })
	}
	o.spawn(ctx, "capture", o.runCapture)

	return nil
}

// Close stops every worker and waits for them until ctx is done.
func (o *Orchestrator) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		if !o.started.Load() {
			return
		}

		o.cancel()
		for _, queue := range o.queues {
			queue.Close()
		}
		if o.transcriber != nil {
			if stopErr := o.transcriber.StopStream(); stopErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to stop transcription stream: %w", stopErr))
			}
		}

		done := make(chan struct{})
		go func() {
			o.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = errors.Join(err, fmt.Errorf("failed to wait for workers: %w", ctx.Err()))
		}

		o.workerErrMu.Lock()
		err = errors.Join(err, o.workerErr)
		o.workerErrMu.Unlock()
	})
	return err
}

// ListenThenUtter listens for one user utterance and responds to it. It
// returns once a cycle ended in Idle: completed, failed or ctx done.
// Interrupted cycles and utterances without text do not end the call; they
// are reported to the cycle callback and listening continues.
func (o *Orchestrator) ListenThenUtter(ctx context.Context, opts ...UtterOption) (CycleOutcome, error) {
	if !o.started.Load() {
		return CycleOutcome{}, ErrNotStarted
	}

	request := &listenRequest{options: newUtterOptions(opts...), reply: make(chan CycleOutcome, 1)}
	select {
	case o.inbox <- request:
	case <-ctx.Done():
		return CycleOutcome{}, ctx.Err()
	case <-o.loopDone:
		return CycleOutcome{}, ErrClosed
	}

	select {
	case outcome := <-request.reply:
		return outcome, outcome.Err
	case <-ctx.Done():
		o.post(listenCancelItem{request: request})
		return CycleOutcome{}, ctx.Err()
	case <-o.loopDone:
		return CycleOutcome{}, ErrClosed
	}
}

func (o *Orchestrator) State() State {
	return o.state.load()
}

func (o *Orchestrator) History() []llms.Message {
	return o.history.snapshot()
}

func (o *Orchestrator) ResetHistory() {
	o.history.reset()
}

// SetInterruptsAllowed turns barge-in handling on or off while running.
func (o *Orchestrator) SetInterruptsAllowed(allowed bool) {
	if o.monitor == nil {
		o.config.AllowInterrupt = allowed
		return
	}
	if allowed {
		o.monitor.Enable()
	} else {
		o.monitor.Disable()
	}
}

func (o *Orchestrator) addWorkerErr(err error) {
	if err == nil {
		return
	}
	o.workerErrMu.Lock()
	o.workerErr = errors.Join(o.workerErr, err)
	o.workerErrMu.Unlock()
}

// post hands an item to the event loop. Items posted after the loop exited
// are dropped.
func (o *Orchestrator) post(item inboxItem) bool {
	select {
	case o.inbox <- item:
		return true
	case <-o.loopDone:
		return false
	}
}

func (o *Orchestrator) postTurnSignal(signal TurnSignal) {
	o.post(signal)
}
