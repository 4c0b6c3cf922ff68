package orchestration

import (
	"sync"

	"github.com/jiroshimaya/fastvoicechat/core/events"
)

type callbacks struct {
	onStateChanged func(from, to State)
	onTurnSignal   func(TurnSignal)
	onCycleEnded   func(CycleOutcome)
}

type eventEmitter struct {
	mu      sync.Mutex
	onEvent func(events.Event)
}

func (e *eventEmitter) emit(event events.Event) {
	if e.onEvent == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEvent(event)
}

func turnSignalEvent(cycleID string, signal TurnSignal) events.Event {
	switch signal.Kind {
	case SpeechStarted:
		return events.NewUserSpeechStarted(cycleID)
	case InterimTranscript:
		return events.NewUserTranscriptInterimUpdated(cycleID, signal.Text)
	case SpeechEnded:
		return events.NewUserSpeechEnded(cycleID, signal.Text, signal.Degraded)
	default:
		return nil
	}
}
