package events

const (
	KindTurnStateChanged Kind = "turn_state.changed"
	KindTurnInterrupted  Kind = "turn_state.interrupted"
	KindTurnCompleted    Kind = "turn_state.completed"
	KindTurnFailed       Kind = "turn_state.failed"
)

type TurnStateChanged struct {
	Base
	From string
	To   string
}

func NewTurnStateChanged(cycleID, from, to string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged, cycleID), From: from, To: to}
}

// TurnInterrupted marks a barge-in during playback.
type TurnInterrupted struct{ Base }

func NewTurnInterrupted(cycleID string) TurnInterrupted {
	return TurnInterrupted{Base: NewBase(KindTurnInterrupted, cycleID)}
}

// TurnCompleted carries the outcome name of a finished cycle.
type TurnCompleted struct {
	Base
	Outcome string
}

func NewTurnCompleted(cycleID, outcome string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted, cycleID), Outcome: outcome}
}

type TurnFailed struct {
	Base
	Err error
}

func NewTurnFailed(cycleID string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed, cycleID), Err: err}
}
