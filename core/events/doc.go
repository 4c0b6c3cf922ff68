// Package events defines the typed events the turn-taking pipeline reports
// to observers.
//
// Event kinds are grouped by namespace:
//
//   - user_input.*
//   - generation.*
//   - assistant_playback.*
//   - turn_state.*
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): a new utterance opened.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot for the open utterance.
//   - UserSpeechEnded (user_input.speech_ended): the utterance closed; carries
//     the final text and whether it was completed without a final result.
//
// generation events
//
//   - GenerationRequested (generation.requested): a backchannel or answer
//     request was dispatched.
//   - GenerationCompleted (generation.completed): a current result arrived.
//   - GenerationFailed (generation.failed): a current result carried an error.
//   - GenerationDropped (generation.dropped): a result arrived for a
//     superseded generation id and was discarded.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): an utterance
//     started playing.
//   - AssistantPlaybackEnded (assistant_playback.ended): an utterance stopped
//     playing, either completely or because it was stopped.
//
// turn_state events
//
//   - TurnStateChanged (turn_state.changed): the orchestrator moved between
//     states.
//   - TurnInterrupted (turn_state.interrupted): the user barged in.
//   - TurnCompleted (turn_state.completed): the cycle ended.
//   - TurnFailed (turn_state.failed): the cycle ended with an error.
package events
