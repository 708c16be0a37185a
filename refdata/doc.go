// Package refdata holds the immutable, ID-indexed reference tables the plan
// synthesis engine consumes: districts, purpose categories, activity durations,
// trip demand records, time-of-day level curves and mode shares.
//
// What:
//
//   - Input: plain, already-parsed table rows (no file-format concerns here).
//   - New(Input): validates every row and foreign key, drops zero-count trip
//     records, merges records sharing a key tuple, normalizes level curves and
//     mode shares, and freezes the result into *Tables.
//   - DecodeYAML / LoadFile: a compact YAML fixture format for tables, used by
//     the CLI and tests. Parsing of the original delimited survey files is not
//     part of this package.
//
// Why:
//
//   - The ledger, the state graph and the search all look rows up by key on
//     the hot path. Resolving foreign keys once up front lets them work with
//     dense indices (TripID, category index) instead of maps.
//
// Errors:
//
//   - Every violation is reported as *ReferenceDataError wrapping one of the
//     sentinels (ErrDuplicateID, ErrUnknownKey, ...). Callers treat it as fatal
//     at startup; no ledger or graph is built from invalid tables.
//
// Concurrency:
//
//   - *Tables is read-only after New returns and safe for concurrent readers.
package refdata
