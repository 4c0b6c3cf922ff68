package events

const (
	// KindAssistantPlaybackStarted identifies the start of an assistant utterance.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the end of an assistant utterance.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of one spoken utterance. Role is
// "backchannel", "answer" or "additional".
type AssistantPlaybackStarted struct {
	Base
	Role string
	Text string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(cycleID, role, text string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted, cycleID), Role: role, Text: text}
}

// AssistantPlaybackEnded marks the end of one spoken utterance. Completed is
// false when playback was stopped or failed.
type AssistantPlaybackEnded struct {
	Base
	Role      string
	Text      string
	Completed bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(cycleID, role, text string, completed bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded, cycleID), Role: role, Text: text, Completed: completed}
}
