// Package repositories implements SQLite persistence for drafts, their clips and clip sync history.
//
// Key Implementations:
//   - [DraftRepository] : chord sheets with their key; deleting a draft deletes its clips
//   - [ClipRepository] : persisted clips, keyed by the ID assigned at capture time
//   - [SyncRunRepository] : one record per clip sync with outcome counters
//
// All repositories soft delete via deleted_at and exclude deleted rows from queries.
// [NextSequence] atomically increments per-table counters kept in dedicated sequence tables.
package repositories
