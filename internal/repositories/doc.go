// Package repositories implements persistence for the reconciliation pipeline.
//
// Two databases are involved. The ledger is read-only and may be SQLite or Postgres; the run history
// is a local SQLite database with embedded migrations, soft deletes and atomic sequence generation.
//
// Key Implementations:
//   - [LedgerRepository] : Read-only queries for transactions, refunds, sub-accounts and providers
//   - [RecordSource] : One ledger origin behind a uniform read interface
//   - [RunRepository] : Run history with status tracking and dropped identities
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
