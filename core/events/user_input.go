package events

const (
	// KindUserSpeechStarted identifies the opening of a user utterance.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserTranscriptInterimUpdated identifies mutable interim transcript updates.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserSpeechEnded identifies the close of a user utterance.
	KindUserSpeechEnded Kind = "user_input.speech_ended"
)

// UserSpeechStarted marks when a user utterance opens.
type UserSpeechStarted struct{ Base }

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted(cycleID string) UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted, cycleID)}
}

// UserTranscriptInterimUpdated carries the interim transcript so far.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates an interim transcript event.
func NewUserTranscriptInterimUpdated(cycleID, transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated, cycleID), Transcript: transcript}
}

// UserSpeechEnded carries the final transcript of the utterance. Degraded is
// set when the utterance closed before the transcriber delivered a final.
type UserSpeechEnded struct {
	Base
	Transcript string
	Degraded   bool
}

// NewUserSpeechEnded creates a user speech ended event.
func NewUserSpeechEnded(cycleID, transcript string, degraded bool) UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded, cycleID), Transcript: transcript, Degraded: degraded}
}
