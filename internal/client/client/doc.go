// Package client contains the transport-facing side of the journal client.
//
// # Overview
//
// The package provides:
//  1. The Remote contract every sync backend implements (Push, Pull, Close),
//     plus the optional Verifier and Provisioner capabilities.
//  2. Four implementations: NotionClient (a Notion database), GRPCClient (a
//     diarysync journal server), S3Client (one JSON object per entry) and
//     CouchClient (one CouchDB document per entry). NewRemote picks one from
//     a RemoteConfig.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring the
//     SQLite journal, embedded goose migrations and optional at-rest
//     encryption.
//
// # Error Handling
//
// Every remote error carries exactly one kind that callers match with
// errors.Is: ErrValidation, ErrUnauthorized or ErrTransport. Only transport
// errors are worth retrying (see IsRetriable). Context cancellation is
// passed through unclassified.
//
// # Mapping
//
// Local fields map to remote fields deterministically. Nothing inspects the
// remote schema at push time; Verify does that on demand.
//
//	Content   -> Notion "Content" (title),    others "content"
//	CreatedAt -> Notion "Date" (date),        others "date"
//	ID        -> Notion "LocalId" (rich_text), others "local_id"
//	Title     -> Notion "Title" (rich_text),   others "title"
package client
