// Package tasks runs draft operations that touch several stores at once, with real-time progress reporting.
//
// # Core Operations
//
//  1. [ClipSync.Sync] : reconcile captured clips with the store
//     - Uploads the audio of transient clips and records a row for each, keeping the capture ID
//     - Hands the durable URI back to the capture engine through a [PersistFunc]
//     - Updates stored names that were changed in the engine
//     - Deletes rows and audio of clips that were removed from the engine
//     - Records the run as a models.SyncRun
//
//  2. [DraftEngine.TransposeDraft] : rewrite a draft's chord sheet into another key
//
//  3. [DraftEngine.Export] : write drafts as json, csv, markdown or txt, optionally with clip audio
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Partial Failure
//
// Sync keeps going when a single clip fails. Failures are collected as [ClipFailure] values and the
// returned error wraps shared.ErrSyncIncomplete, so running Sync again retries only what is left.
//
// # Implementation
//
// The tasks depend on small store interfaces ([DraftStore], [ClipStore], [RunStore]) satisfied by
// the repositories package, and on services.Storage for audio.
package tasks
