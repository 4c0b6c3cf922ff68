package orchestration

import "time"

type TurnSignalKind int

const (
	SpeechStarted TurnSignalKind = iota + 1
	InterimTranscript
	SpeechEnded
)

func (k TurnSignalKind) String() string {
	switch k {
	case SpeechStarted:
		return "speech_started"
	case InterimTranscript:
		return "interim_transcript"
	case SpeechEnded:
		return "speech_ended"
	default:
		return "unknown"
	}
}

// TurnSignal is one step of a user utterance as seen by the orchestrator.
// For every Cycle the detector emits at most one SpeechStarted, then any
// number of InterimTranscript and exactly one SpeechEnded.
type TurnSignal struct {
	Kind TurnSignalKind
	// Text is the transcript so far for InterimTranscript and the final text
	// for SpeechEnded.
	Text      string
	Timestamp time.Time
	Cycle     uint64
	// Degraded marks a SpeechEnded emitted before a final transcript arrived.
	Degraded bool
	// Err is set on a SpeechEnded caused by a transcriber failure.
	Err error
}
