// Package models defines domain entities and persistence interfaces for the acctsync reconciliation pipeline.
//
// The package contains two categories of types:
//
// 1. Pipeline values: built fresh on every run and discarded afterwards
//   - [Record] : One column-named row read from a ledger source
//   - [Identity] : The (account, provider, team) key merged across sources
//   - [RemoteAccount] : Status record returned by the account-status API
//   - [EnrichedRow] : One report row per surviving identity
//   - [TeamReport] : Ordered rows for a single team tab
//   - [Lookup] : Explicit found / not found / failed outcome of a lookup
//
// 2. Persistent Entities: Database-backed run history
//   - [Run] : A single pipeline run with counters and status
//   - [Drop] : An identity that did not make it into a report, and why
//
// Nulls stay explicit ([decimal.NullDecimal], nil dates) until a row is rendered for display.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
