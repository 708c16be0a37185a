// Package ledger implements the capacity ledger: three depleting resource
// pools derived once from the reference tables.
//
//   - perTrip[trip]         the trip record's count.
//   - perLevel[category,bin] the category total apportioned by its level curve.
//   - perMode[mode]         the overall total apportioned by the mode shares.
//
// Apportionment is deterministic and exact: for every category the level pool
// sums to the category's trip count, and the mode pool sums to the overall
// trip count (see package apportion and WithMethod).
//
// Concurrency:
//
//   - Reads (Remaining*, Peek, Depleted) take a shared lock and never block each other.
//   - TryCommit takes the exclusive lock, verifies usage against all three pools
//     and decrements all of them, or leaves the ledger untouched.
//   - Remaining values are monotone non-increasing and never negative.
//
// A TryCommit returning false after the search judged a path affordable is a
// capacity race. It is counted in Stats, never reported as an error.
package ledger
