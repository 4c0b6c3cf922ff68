package orchestration

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jiroshimaya/fastvoicechat/core/speechtotext"
	"github.com/jiroshimaya/fastvoicechat/core/vad"
)

const detectorInputCapacity = 64

var errTranscriberUnavailable = errors.New("transcriber unavailable")

type transcriptKind int

const (
	transcriptInterim transcriptKind = iota
	transcriptFinal
	transcriptUtteranceEnd
	transcriptFailure
)

type transcriptEvent struct {
	kind transcriptKind
	text string
	err  error
	at   time.Time
}

type segmentInput struct {
	event vad.Event
	err   error
}

// TurnDetector fuses segmenter boundaries and transcripts into TurnSignals.
// All of its state is owned by the Run goroutine; the Handle methods only
// queue input for it.
type TurnDetector struct {
	minSilence         time.Duration
	endOfSpeechSilence time.Duration
	finalTimeout       time.Duration
	emit               func(TurnSignal)

	segments    chan segmentInput
	transcripts chan transcriptEvent
	done        chan struct{}

	cycle            uint64
	open             bool
	finals           []string
	interim          string
	lastEmitted      string
	finalDelivered   bool
	silenceConfirmed bool
	transcriptDriven bool
	transcriberDown  bool
	lastClosedAt     time.Time

	endTimer   *time.Timer
	endC       <-chan time.Time
	finalTimer *time.Timer
	finalC     <-chan time.Time
}

func NewTurnDetector(config Config, emit func(TurnSignal)) *TurnDetector {
	return &TurnDetector{
		minSilence:         config.MinSilence,
		endOfSpeechSilence: config.EndOfSpeechSilence,
		finalTimeout:       config.FinalTranscriptTimeout,
		emit:               emit,
		segments:           make(chan segmentInput, detectorInputCapacity),
		transcripts:        make(chan transcriptEvent, detectorInputCapacity),
		done:               make(chan struct{}),
	}
}

// HandleSegment queues a segmenter event. Frames without a boundary carry
// no information for the detector and may be skipped by the caller.
func (d *TurnDetector) HandleSegment(event vad.Event) {
	pushInput(d.segments, segmentInput{event: event}, d.done)
}

func (d *TurnDetector) HandleSegmentationFailure(err error) {
	pushInput(d.segments, segmentInput{err: err}, d.done)
}

func (d *TurnDetector) HandleInterim(text string) {
	pushInput(d.transcripts, transcriptEvent{kind: transcriptInterim, text: text, at: time.Now()}, d.done)
}

func (d *TurnDetector) HandleFinal(text string) {
	pushInput(d.transcripts, transcriptEvent{kind: transcriptFinal, text: text, at: time.Now()}, d.done)
}

func (d *TurnDetector) HandleUtteranceEnd() {
	pushInput(d.transcripts, transcriptEvent{kind: transcriptUtteranceEnd, at: time.Now()}, d.done)
}

func (d *TurnDetector) HandleTranscriptionFailure(err error) {
	pushInput(d.transcripts, transcriptEvent{kind: transcriptFailure, err: err, at: time.Now()}, d.done)
}

// TranscriptionOptions wires a transcriber's callbacks to the detector.
func (d *TurnDetector) TranscriptionOptions() []speechtotext.TranscriptionOption {
	return []speechtotext.TranscriptionOption{
		speechtotext.WithInterimCallback(d.HandleInterim),
		speechtotext.WithFinalCallback(d.HandleFinal),
		speechtotext.WithUtteranceEndCallback(d.HandleUtteranceEnd),
		speechtotext.WithErrorCallback(d.HandleTranscriptionFailure),
	}
}

func pushInput[T any](ch chan<- T, input T, done <-chan struct{}) {
	select {
	case ch <- input:
	case <-done:
	}
}

// useTranscriptDriven makes utterances open on transcripts and close on
// transcript inactivity. Must be called before Run.
func (d *TurnDetector) useTranscriptDriven() {
	d.transcriptDriven = true
}

func (d *TurnDetector) Run(ctx context.Context) error {
	defer close(d.done)
	defer d.disarmTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case input := <-d.segments:
			d.handleSegment(input)
		case event := <-d.transcripts:
			d.handleTranscript(event)
		case <-d.endC:
			d.endC = nil
			d.confirmSilence()
		case <-d.finalC:
			d.finalC = nil
			logger.Warn("no final transcript before timeout, ending utterance with best available text",
				"cycle", d.cycle, "timeout", d.finalTimeout)
			d.closeCycle(d.text(), true, nil)
		}
	}
}

func (d *TurnDetector) handleSegment(input segmentInput) {
	if input.err != nil {
		if !d.transcriptDriven {
			d.transcriptDriven = true
			logger.Warn("segmentation failed, ending utterances on transcript inactivity", "error", input.err)
			if d.open && d.endC == nil && !d.silenceConfirmed {
				d.armEnd(d.endOfSpeechSilence)
			}
		}
		return
	}
	if d.transcriptDriven {
		return
	}

	switch input.event.Boundary {
	case vad.BoundarySpeechStart:
		d.disarmEnd()
		d.disarmFinal()
		d.silenceConfirmed = false
		if !d.open {
			d.openCycle(input.event.At)
			return
		}
		// Resumed speech needs its own final before the cycle may close.
		d.finalDelivered = false
	case vad.BoundarySpeechEnd:
		if !d.open {
			return
		}
		silentFor := input.event.At.Sub(input.event.SilenceStartedAt)
		d.armEnd(max(d.endOfSpeechSilence-silentFor, 0))
	}
}

func (d *TurnDetector) handleTranscript(event transcriptEvent) {
	if event.kind == transcriptFailure {
		d.transcriberDown = true
		logger.Error("transcriber failed", "error", event.err)
		if d.open {
			d.closeCycle("", false, newFailure(TranscriptionFailure, event.err))
		}
		return
	}
	d.transcriberDown = false

	if !d.open {
		if d.transcriptDriven && event.kind == transcriptInterim && event.text != "" &&
			event.at.Sub(d.lastClosedAt) >= d.minSilence {
			d.openCycle(event.at)
		} else {
			logger.Debug("dropping transcript outside an utterance", "text", event.text)
			return
		}
	}

	switch event.kind {
	case transcriptInterim:
		d.interim = event.text
		d.finalDelivered = false
		d.emitInterim(event.at)
		if d.transcriptDriven {
			d.silenceConfirmed = false
			d.disarmFinal()
			d.armEnd(d.endOfSpeechSilence)
			return
		}
	case transcriptFinal:
		if strings.TrimSpace(event.text) != "" {
			d.finals = append(d.finals, event.text)
		}
		d.interim = ""
		d.finalDelivered = true
		d.emitInterim(event.at)
	case transcriptUtteranceEnd:
		if d.interim != "" {
			d.finals = append(d.finals, d.interim)
			d.interim = ""
		}
		d.finalDelivered = true
	}

	if d.silenceConfirmed && d.finalDelivered {
		d.closeCycle(d.text(), false, nil)
		return
	}
	if d.transcriptDriven && !d.silenceConfirmed {
		d.armEnd(d.endOfSpeechSilence)
	}
}

func (d *TurnDetector) confirmSilence() {
	if !d.open {
		return
	}

	d.silenceConfirmed = true
	switch {
	case d.finalDelivered:
		d.closeCycle(d.text(), false, nil)
	case d.transcriberDown:
		d.closeCycle(d.text(), true, newFailure(TranscriptionFailure, errTranscriberUnavailable))
	default:
		d.armFinal(d.finalTimeout)
	}
}

func (d *TurnDetector) openCycle(at time.Time) {
	d.cycle++
	d.open = true
	d.finals = nil
	d.interim = ""
	d.lastEmitted = ""
	d.finalDelivered = false
	d.silenceConfirmed = false

	d.emit(TurnSignal{Kind: SpeechStarted, Timestamp: at, Cycle: d.cycle})
}

func (d *TurnDetector) emitInterim(at time.Time) {
	text := d.text()
	if text == "" || text == d.lastEmitted {
		return
	}
	d.lastEmitted = text
	d.emit(TurnSignal{Kind: InterimTranscript, Text: text, Timestamp: at, Cycle: d.cycle})
}

func (d *TurnDetector) closeCycle(text string, degraded bool, err error) {
	d.disarmTimers()
	d.open = false
	d.silenceConfirmed = false
	d.lastClosedAt = time.Now()

	d.emit(TurnSignal{
		Kind:      SpeechEnded,
		Text:      text,
		Timestamp: d.lastClosedAt,
		Cycle:     d.cycle,
		Degraded:  degraded,
		Err:       err,
	})
}

// text is the cycle's confirmed finals followed by the pending interim.
func (d *TurnDetector) text() string {
	return joinTranscripts(append(append([]string{}, d.finals...), d.interim)...)
}

func (d *TurnDetector) armEnd(after time.Duration) {
	d.disarmEnd()
	d.endTimer = time.NewTimer(after)
	d.endC = d.endTimer.C
}

func (d *TurnDetector) disarmEnd() {
	if d.endTimer != nil {
		d.endTimer.Stop()
	}
	d.endTimer, d.endC = nil, nil
}

func (d *TurnDetector) armFinal(after time.Duration) {
	d.disarmFinal()
	d.finalTimer = time.NewTimer(after)
	d.finalC = d.finalTimer.C
}

func (d *TurnDetector) disarmFinal() {
	if d.finalTimer != nil {
		d.finalTimer.Stop()
	}
	d.finalTimer, d.finalC = nil, nil
}

func (d *TurnDetector) disarmTimers() {
	d.disarmEnd()
	d.disarmFinal()
}

// joinTranscripts concatenates transcript pieces, putting a space only
// between two ASCII neighbours so Japanese text stays unspaced.
func joinTranscripts(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			last, _ := utf8.DecodeLastRuneInString(b.String())
			first, _ := utf8.DecodeRuneInString(part)
			if last < utf8.RuneSelf && first < utf8.RuneSelf {
				b.WriteByte(' ')
			}
		}
		b.WriteString(part)
	}
	return b.String()
}
