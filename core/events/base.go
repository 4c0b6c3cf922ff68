package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	CycleID() string
}

// Base carries the fields every event shares. CycleID is empty for events
// raised outside an utterance cycle.
type Base struct {
	kind      Kind
	timestamp time.Time
	cycleID   string
}

func NewBase(kind Kind, cycleID string) Base {
	return Base{kind: kind, timestamp: time.Now(), cycleID: cycleID}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) CycleID() string {
	return b.cycleID
}
