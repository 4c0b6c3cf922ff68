package orchestration

import "sync/atomic"

type State int32

const (
	StateIdle State = iota
	StateListeningForSpeech
	StateAwaitingBackchannel
	StatePlayingBackchannel
	StateAwaitingAnswer
	StatePlayingAnswer
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListeningForSpeech:
		return "listening_for_speech"
	case StateAwaitingBackchannel:
		return "awaiting_backchannel"
	case StatePlayingBackchannel:
		return "playing_backchannel"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StatePlayingAnswer:
		return "playing_answer"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

func (s State) isPlaying() bool {
	return s == StatePlayingBackchannel || s == StatePlayingAnswer
}

// stateCell is written only by the inbox loop and read from anywhere.
type stateCell struct {
	value atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.value.Load())
}

func (c *stateCell) store(s State) {
	c.value.Store(int32(s))
}
