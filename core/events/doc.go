// Package events defines the typed event contract emitted by the turn
// orchestrator.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session_state.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text/state for the current phase.
//   - Ended: lifecycle boundary indicating completion.
//
// session_state events
//
//   - SessionStateChanged (session_state.changed): the orchestrator moved
//     between Idle, Listening, AwaitingResponse and Speaking.
//
// user_input events
//
//   - UserTranscriptUpdated (user_input.transcript_updated): text of the user
//     turn being dictated changed.
//   - UserTranscriptFinal (user_input.transcript_final): the user turn ended,
//     either by the recognizer or by the inactivity watchdog.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): the finished
//     utterance was handed to the response generator.
//   - AssistantResponseFinal (assistant_response.final): the reply arrived and
//     was appended to the log.
//   - AssistantResponseFailed (assistant_response.failed): generation failed or
//     produced nothing; the orchestrator went back to listening.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): the reply was
//     handed to speech output.
//   - AssistantPlaybackEnded (assistant_playback.ended): speech output finished.
//
// turn_state events
//
//   - TurnCancelled (turn_state.cancelled): in-flight work was discarded by
//     stop or reset.
package events
