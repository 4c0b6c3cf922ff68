package orchestration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jiroshimaya/fastvoicechat/core/llms"
)

type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeFailed
	OutcomeInterrupted
	// OutcomeNoInput is a cycle whose utterance produced no text.
	OutcomeNoInput
	// OutcomeAbandoned is a cycle cut short because its listener went away.
	OutcomeAbandoned
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeNoInput:
		return "no_input"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// CycleOutcome reports how one utterance cycle ended and what was said in
// it.
type CycleOutcome struct {
	CycleID     string
	Kind        OutcomeKind
	UserText    string
	Backchannel string
	Answer      string
	Additional  string
	// Degraded is set when the user text was taken without a final
	// transcript.
	Degraded  bool
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

type utteranceCycle struct {
	id            string
	detectorCycle uint64
	startedAt     time.Time
	options       utterOptions

	ctx    context.Context
	cancel context.CancelFunc

	userText    string
	degraded    bool
	speechEnded bool

	backchannelSource  string
	backchannelCancel  context.CancelFunc
	backchannelStarted bool
	backchannelPlaying bool
	backchannelDone    chan struct{}

	answerStarted bool
	answerSkipped bool
}

func (c *utteranceCycle) outcome(kind OutcomeKind, err error, spoken []spokenUtterance) CycleOutcome {
	outcome := CycleOutcome{
		CycleID:   c.id,
		Kind:      kind,
		UserText:  c.userText,
		Degraded:  c.degraded,
		Err:       err,
		StartedAt: c.startedAt,
		EndedAt:   time.Now(),
	}

	var answer []string
	for _, utterance := range spoken {
		switch utterance.role {
		case roleBackchannel:
			outcome.Backchannel = utterance.text
		case roleAnswer:
			answer = append(answer, utterance.text)
		case roleAdditional:
			outcome.Additional = utterance.text
		}
	}
	outcome.Answer = strings.Join(answer, "")
	return outcome
}

// conversationHistory is the flat prompt context carried between cycles.
type conversationHistory struct {
	mu       sync.RWMutex
	messages []llms.Message
}

func (h *conversationHistory) snapshot() []llms.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages := make([]llms.Message, len(h.messages))
	copy(messages, h.messages)
	return messages
}

func (h *conversationHistory) append(messages ...llms.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, messages...)
}

func (h *conversationHistory) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// historyMessages turns a finished cycle into history entries: the user
// text followed by every assistant utterance that actually started playing.
func historyMessages(outcome CycleOutcome) []llms.Message {
	var messages []llms.Message
	if outcome.UserText != "" {
		messages = append(messages, llms.UserMessage(outcome.UserText))
	}
	for _, text := range []string{outcome.Backchannel, outcome.Answer, outcome.Additional} {
		if text != "" {
			messages = append(messages, llms.AssistantMessage(text))
		}
	}
	return messages
}
