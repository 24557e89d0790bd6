// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements the pipeline's store interfaces through a single database
// connection:
//
//   - JobStore: generation job records, stored as JSON payloads with indexed
//     status, product and idempotency-key columns
//   - ChunkStore: indexed source chunks with little-endian float32 embeddings
//   - ArtifactStore: the latest fact sheet, audit, drafts and verifier report per product
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.pda/data/pda.db
//
// # Thread Safety
//
// All operations are thread-safe. Job updates bump the version in a single
// UPDATE ... RETURNING statement; SQLite runs in WAL mode with a busy timeout.
package sqlite
