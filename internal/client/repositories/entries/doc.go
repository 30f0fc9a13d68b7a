// Package entries is the local Entry Store: a durable mapping from entry id
// to the last known state of that entry, backed by SQLite.
//
// # Conflict policy
//
// Put is an upsert keyed by id that honours the fencing token. A write whose
// LastSyncedAt is older than the stored one changes nothing and reports
// ErrStaleWrite. A nil LastSyncedAt is older than any stored timestamp. The
// check and the write are one statement, so concurrent writers cannot
// interleave between them.
//
// # Typical usage
//
//	repo := entries.NewSQLiteRepository(db, entries.WithCipher(sealer))
//	err := repo.Put(ctx, e)
//	if errors.Is(err, entries.ErrStaleWrite) {
//	    // newer state already stored
//	}
//	list, _ := repo.List(ctx)
package entries
