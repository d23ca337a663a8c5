// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*: orchestration state observable by a presentation layer.
//   - user_input.*: transcription progress for the in-flight utterance.
//   - conversation.*: changes to the persisted message log.
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Appended: immutable entry added to an append-only log.
//
// session events
//
//   - PhaseChanged (session.phase_changed): the controller moved between
//     phases; carries previous and current phase names.
//   - ConnectionChanged (session.connection_changed): health of the responder
//     channel changed.
//   - ErrorSurfaced (session.error_surfaced): a failure the user should see;
//     carries the error kind and a human-readable message.
//
// user_input events
//
//   - TranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot; emitted with an empty transcript
//     when the buffer is cleared.
//   - TranscriptFinal (user_input.transcript_final): terminal transcript for
//     the utterance.
//
// conversation events
//
//   - MessageAppended (conversation.message_appended): a message was added to
//     the conversation log.
package events
