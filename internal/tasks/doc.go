// Package tasks runs the account reconciliation pipeline with real-time progress reporting.
//
// # Pipeline
//
// [ReconcileEngine.Run] executes these phases in order:
//
//  1. Read sources : transactions, refunds and team accounts are read concurrently.
//     A source that fails is logged and treated as empty.
//  2. Merge : [Merge] unions the identity triples of all three sources.
//  3. Authenticate : one status API session is shared read-only by every worker.
//  4. Enrich : [Enricher.EnrichAll] fans identities out over a bounded worker pool.
//     Local lookups are memoized per run and every remote call passes through a [throttle.Limiter].
//     An identity that fails any lookup is dropped without affecting the others.
//  5. Assemble : [BuildRow] applies the date, spend and refund precedence rules and
//     [Assemble] orders each team's rows by date, newest first.
//  6. Snapshot : the reports are saved as a JSON artifact for audit and replay.
//  7. Sync : [SheetSync.Sync] clears and rewrites one spreadsheet tab per team.
//
// [ReconcileEngine.Replay] runs only the sync phase from a saved snapshot.
//
// # Progress Reporting
//
// All operations report through a non-blocking chan<- [ProgressUpdate]. Updates are dropped
// rather than stalling the pipeline when the receiver falls behind.
//
// # Run History
//
// When an [EngineConfig.Runs] store is configured, each run is recorded with its counters
// and the identities that were dropped along the way.
package tasks
