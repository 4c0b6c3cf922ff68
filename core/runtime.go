package orchestration

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jiroshimaya/fastvoicechat/core/events"
	"github.com/jiroshimaya/fastvoicechat/core/generation"
	"github.com/jiroshimaya/fastvoicechat/core/llms"
)

// inboxItem is anything the event loop handles. Only the loop mutates the
// state, the cycle and the generation id.
type inboxItem interface {
	inboxItem()
}

type listenRequest struct {
	options utterOptions
	reply   chan CycleOutcome
}

type listenCancelItem struct {
	request *listenRequest
}

type generationResultItem struct {
	cycle  *utteranceCycle
	result generation.Result
}

type speechDoneItem struct {
	job       *speechJob
	completed bool
	err       error
}

type captureFailedItem struct {
	err error
}

func (TurnSignal) inboxItem()           {}
func (*listenRequest) inboxItem()       {}
func (listenCancelItem) inboxItem()     {}
func (generationResultItem) inboxItem() {}
func (speechDoneItem) inboxItem()       {}
func (captureFailedItem) inboxItem()    {}

func (o *Orchestrator) runInbox(ctx context.Context) error {
	defer close(o.loopDone)

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-o.signal.C():
			o.handleInterrupt()
		case item := <-o.inbox:
			switch item := item.(type) {
			case TurnSignal:
				o.handleTurnSignal(item)
			case *listenRequest:
				o.handleListen(item)
			case listenCancelItem:
				o.handleListenCancel(item)
			case generationResultItem:
				o.handleGenerationResult(item)
			case speechDoneItem:
				o.handleSpeechDone(item)
			case captureFailedItem:
				o.handleCaptureFailure(item.err)
			}
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.cycle != nil {
		o.endCycle(OutcomeAbandoned, nil)
	}
	o.reply(CycleOutcome{Kind: OutcomeAbandoned, Err: ErrClosed})
	o.setState(StateIdle)
}

func (o *Orchestrator) setState(to State) {
	from := o.state.load()
	if from == to {
		return
	}
	o.state.store(to)

	o.metrics.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	logger.Debug("state changed", "from", from, "to", to)
	if o.callbacks.onStateChanged != nil {
		o.callbacks.onStateChanged(from, to)
	}
	o.emitter.emit(events.NewTurnStateChanged(o.cycleID(), from.String(), to.String()))
}

func (o *Orchestrator) cycleID() string {
	if o.cycle == nil {
		return ""
	}
	return o.cycle.id
}

func (o *Orchestrator) enterListening() {
	o.signal.Clear()
	o.setState(StateListeningForSpeech)
}

func (o *Orchestrator) reply(outcome CycleOutcome) {
	if o.listener == nil {
		return
	}
	o.listener.reply <- outcome
	o.listener = nil
}

func (o *Orchestrator) handleListen(request *listenRequest) {
	switch {
	case o.fatalErr != nil:
		request.reply <- CycleOutcome{Kind: OutcomeFailed, Err: o.fatalErr}
	case o.listener != nil:
		request.reply <- CycleOutcome{Kind: OutcomeFailed, Err: ErrListenInProgress}
	default:
		o.listener = request
		o.enterListening()
	}
}

func (o *Orchestrator) handleListenCancel(item listenCancelItem) {
	if o.listener != item.request {
		return
	}
	if o.cycle != nil {
		o.endCycle(OutcomeAbandoned, nil)
	}
	o.listener = nil
	o.setState(StateIdle)
}

func (o *Orchestrator) handleCaptureFailure(err error) {
	o.fatalErr = err
	if o.cycle != nil {
		o.finishCycle(OutcomeFailed, err)
		return
	}
	o.reply(CycleOutcome{Kind: OutcomeFailed, Err: err})
	o.setState(StateIdle)
}

func (o *Orchestrator) beginCycle(signal TurnSignal) *utteranceCycle {
	ctx, cancel := context.WithCancel(o.runCtx)
	c := &utteranceCycle{
		id:            uuid.NewString(),
		detectorCycle: signal.Cycle,
		startedAt:     signal.Timestamp,
		options:       o.listener.options,
		ctx:           ctx,
		cancel:        cancel,
	}
	o.cycle = c
	logger.Info("utterance cycle started", "cycle_id", c.id)
	return c
}

func (o *Orchestrator) handleTurnSignal(signal TurnSignal) {
	o.metrics.turnSignals.WithLabelValues(signal.Kind.String()).Inc()
	if o.callbacks.onTurnSignal != nil {
		o.callbacks.onTurnSignal(signal)
	}

	if o.listener == nil {
		logger.Debug("dropping turn signal while idle", "kind", signal.Kind)
		return
	}

	c := o.cycle
	if c != nil && c.detectorCycle != signal.Cycle {
		if c.speechEnded {
			logger.Debug("dropping turn signal overlapping the response", "kind", signal.Kind, "cycle_id", c.id)
			return
		}
		c.detectorCycle = signal.Cycle
	}
	if c == nil {
		c = o.beginCycle(signal)
	}
	if event := turnSignalEvent(c.id, signal); event != nil {
		o.emitter.emit(event)
	}

	switch signal.Kind {
	case InterimTranscript:
		if c.speechEnded {
			return
		}
		c.userText = signal.Text
		o.requestBackchannel(c, signal.Text)
	case SpeechEnded:
		o.handleSpeechEnded(c, signal)
	}
}

func (o *Orchestrator) promptHistory(c *utteranceCycle) []llms.Message {
	if c.options.withoutHistory {
		return nil
	}
	return o.history.snapshot()
}

func (o *Orchestrator) submit(ctx context.Context, c *utteranceCycle, generator generation.Generator, request generation.Request) {
	o.emitter.emit(events.NewGenerationRequested(c.id, generationRef(request.Kind, request.GenerationID), request.SourceText))
	generator.Submit(ctx, request, func(result generation.Result) {
		o.post(generationResultItem{cycle: c, result: result})
	})
}

func generationRef(kind generation.Kind, id uint64) events.Generation {
	return events.Generation{GenerationKind: string(kind), GenerationID: id}
}

// requestBackchannel asks for a backchannel for the latest interim text. A
// newer interim supersedes the pending request; once a backchannel started
// playing the cycle asks for no more.
func (o *Orchestrator) requestBackchannel(c *utteranceCycle, text string) {
	if !o.config.BackchannelEnabled || o.backchannel == nil || c.backchannelStarted {
		return
	}
	if state := o.state.load(); state != StateListeningForSpeech && state != StateAwaitingBackchannel {
		return
	}
	if text == "" || text == c.backchannelSource {
		return
	}

	if c.backchannelCancel != nil {
		c.backchannelCancel()
	}
	id, _ := o.slot.advance()
	ctx, cancel := context.WithCancel(c.ctx)
	c.backchannelSource = text
	c.backchannelCancel = cancel

	o.setState(StateAwaitingBackchannel)
	o.submit(ctx, c, o.backchannel, generation.Request{
		Kind:         generation.KindBackchannel,
		SourceText:   text,
		GenerationID: id,
		History:      o.promptHistory(c),
	})
}

func (o *Orchestrator) handleSpeechEnded(c *utteranceCycle, signal TurnSignal) {
	c.speechEnded = true
	c.userText = signal.Text
	c.degraded = signal.Degraded
	if c.backchannelCancel != nil {
		c.backchannelCancel()
	}

	if strings.TrimSpace(signal.Text) == "" {
		if signal.Err != nil {
			o.finishCycle(OutcomeFailed, signal.Err)
			return
		}
		o.restartListening(OutcomeNoInput)
		return
	}
	if signal.Err != nil {
		logger.Warn("answering partial transcript after transcription failure", "cycle_id", c.id, "error", signal.Err)
	}

	id, spoken := o.slot.advance()
	if c.backchannelPlaying && o.config.BackchannelOnSpeechEnd == BackchannelCut {
		o.slot.stop()
	}
	o.setState(StateAwaitingAnswer)

	if o.answer == nil {
		o.finishCycle(OutcomeFailed, newFailure(GenerationFailure, errors.New("no answer generator configured")))
		return
	}

	var backchannel string
	for _, utterance := range spoken {
		if utterance.role == roleBackchannel {
			backchannel = utterance.text
		}
	}
	o.submit(c.ctx, c, o.answer, generation.Request{
		Kind:         generation.KindAnswer,
		SourceText:   signal.Text,
		GenerationID: id,
		History:      o.promptHistory(c),
		Backchannel:  backchannel,
	})
}

func (o *Orchestrator) handleGenerationResult(item generationResultItem) {
	result := item.result
	ref := generationRef(result.Kind, result.GenerationID)
	o.metrics.generationLatency.WithLabelValues(string(result.Kind)).Observe(result.Latency.Seconds())

	c := o.cycle
	if c == nil || item.cycle != c || result.GenerationID != o.slot.current() {
		o.metrics.staleResults.WithLabelValues(string(result.Kind)).Inc()
		logger.Debug("dropping stale generation result", "kind", result.Kind, "generation_id", result.GenerationID)
		o.emitter.emit(events.NewGenerationDropped(item.cycle.id, ref))
		return
	}

	if result.Err != nil {
		o.emitter.emit(events.NewGenerationFailed(c.id, ref, result.Err))
	} else {
		o.emitter.emit(events.NewGenerationCompleted(c.id, ref, result.Text, result.Skipped))
	}

	switch result.Kind {
	case generation.KindBackchannel:
		o.handleBackchannelResult(c, result)
	case generation.KindAnswer:
		o.handleAnswerResult(c, result)
	}
}

func (o *Orchestrator) handleBackchannelResult(c *utteranceCycle, result generation.Result) {
	if c.speechEnded || o.state.load() != StateAwaitingBackchannel {
		return
	}

	text := strings.TrimSpace(result.Text)
	switch {
	case result.Err != nil:
		logger.Warn("backchannel generation failed", "cycle_id", c.id, "error", result.Err)
		o.setState(StateListeningForSpeech)
		return
	case result.Skipped || text == "":
		o.setState(StateListeningForSpeech)
		return
	}

	c.backchannelStarted = true
	c.backchannelPlaying = true
	c.backchannelDone = make(chan struct{})
	o.setState(StatePlayingBackchannel)
	o.startSpeech(&speechJob{
		cycle:        c,
		generationID: result.GenerationID,
		role:         roleBackchannel,
		sentences:    []string{text},
		done:         c.backchannelDone,
	})
}

func (o *Orchestrator) handleAnswerResult(c *utteranceCycle, result generation.Result) {
	if result.Err != nil {
		o.finishCycle(OutcomeFailed, newFailure(GenerationFailure, result.Err))
		return
	}

	var sentences []string
	if !result.Skipped {
		sentences = generation.SplitSentences(result.Text, generation.SentenceSeparators)
	}
	if len(sentences) > 0 {
		o.startAnswer(c, result.GenerationID, roleAnswer, sentences)
		return
	}

	c.answerSkipped = true
	if additional := c.options.additionalUtterance; additional != "" {
		o.startAnswer(c, result.GenerationID, roleAdditional, []string{additional})
		return
	}
	if !c.backchannelPlaying {
		o.finishCycle(OutcomeCompleted, nil)
	}
}

// startAnswer speaks after any backchannel still playing.
func (o *Orchestrator) startAnswer(c *utteranceCycle, id uint64, role utteranceRole, sentences []string) {
	c.answerStarted = true
	job := &speechJob{cycle: c, generationID: id, role: role, sentences: sentences}
	if c.backchannelPlaying {
		job.after = c.backchannelDone
	} else {
		o.setState(StatePlayingAnswer)
	}
	o.startSpeech(job)
}

func (o *Orchestrator) handleSpeechDone(item speechDoneItem) {
	job, c := item.job, o.cycle
	if c == nil || job.cycle != c {
		return
	}

	if job.role == roleBackchannel {
		c.backchannelPlaying = false
		if item.err != nil {
			logger.Warn("backchannel playback failed", "cycle_id", c.id, "error", item.err)
		}

		switch o.state.load() {
		case StatePlayingBackchannel:
			o.setState(StateListeningForSpeech)
		case StateAwaitingAnswer:
			if c.answerStarted {
				o.setState(StatePlayingAnswer)
			} else if c.answerSkipped {
				o.finishCycle(OutcomeCompleted, nil)
			}
		}
		return
	}

	if job.generationID != o.slot.current() {
		return
	}
	switch {
	case item.err != nil:
		o.finishCycle(OutcomeFailed, item.err)
	case !item.completed:
		o.finishCycle(OutcomeFailed, newFailure(PlaybackFailure, errors.New("playback stopped before completion")))
	case job.role == roleAnswer && c.options.additionalUtterance != "":
		o.startAnswer(c, job.generationID, roleAdditional, []string{c.options.additionalUtterance})
	default:
		o.finishCycle(OutcomeCompleted, nil)
	}
}

func (o *Orchestrator) handleInterrupt() {
	c := o.cycle
	if c == nil || !(o.state.load().isPlaying() || c.backchannelPlaying) {
		logger.Debug("ignoring interrupt outside playback", "state", o.state.load())
		return
	}
	if !o.monitor.Enabled() {
		return
	}

	logger.Info("playback interrupted by user speech", "cycle_id", c.id, "state", o.state.load())
	o.emitter.emit(events.NewTurnInterrupted(c.id))
	o.setState(StateInterrupted)
	o.restartListening(OutcomeInterrupted)
}

// endCycle supersedes everything the cycle started, stops its playback and
// reports it.
func (o *Orchestrator) endCycle(kind OutcomeKind, err error) CycleOutcome {
	c := o.cycle
	_, spoken := o.slot.release()
	c.cancel()

	outcome := c.outcome(kind, err, spoken)
	if !c.options.withoutHistory {
		o.history.append(historyMessages(outcome)...)
	}

	o.metrics.cycleOutcomes.WithLabelValues(kind.String()).Inc()
	if err != nil {
		logger.Error("utterance cycle failed", "cycle_id", c.id, "error", err)
		o.emitter.emit(events.NewTurnFailed(c.id, err))
	} else {
		logger.Info("utterance cycle ended", "cycle_id", c.id, "outcome", kind)
	}
	o.emitter.emit(events.NewTurnCompleted(c.id, kind.String()))
	if o.callbacks.onCycleEnded != nil {
		o.callbacks.onCycleEnded(outcome)
	}

	o.cycle = nil
	return outcome
}

// finishCycle ends the cycle in Idle and answers the listener.
func (o *Orchestrator) finishCycle(kind OutcomeKind, err error) {
	outcome := o.endCycle(kind, err)
	o.setState(StateIdle)
	o.reply(outcome)
}

// restartListening ends the cycle and keeps listening for the same caller.
func (o *Orchestrator) restartListening(kind OutcomeKind) {
	o.endCycle(kind, nil)
	o.enterListening()
}
