package main

import (
	"fmt"
	"io"

	"github.com/jiroshimaya/fastvoicechat/core/events"
)

// printEvent writes the conversation as plain lines.
func printEvent(w io.Writer) func(events.Event) {
	return func(event events.Event) {
		switch e := event.(type) {
		case events.UserSpeechEnded:
			if e.Transcript != "" {
				fmt.Fprintf(w, "you: %s\n", e.Transcript)
			}
		case events.AssistantPlaybackStarted:
			fmt.Fprintf(w, "bot (%s): %s\n", e.Role, e.Text)
		case events.TurnInterrupted:
			fmt.Fprintln(w, "(interrupted)")
		case events.TurnFailed:
			fmt.Fprintf(w, "error: %v\n", e.Err)
		}
	}
}
