// Package syncer reconciles the local journal with a remote.
//
// Pushes go through a duplicate-suppressing FIFO queue drained by a single
// worker, so an entry id is never pushed twice at the same time and pushes
// happen in the order entries were first queued. Transport failures are
// retried with capped exponential backoff; every other failure is terminal
// and reported once on the event stream.
//
// Pull applies remote records with last-write-wins on the modification time.
// Pushes, pulls and local edits of the same id serialize on a per-id lock,
// and every store write still passes the LastSyncedAt fence.
package syncer
