// Package replica implements the replicated document the sync core edits.
//
// A Doc is a multi-writer document made of named collections of records.
// Every record field, and every record's liveness, is a last-writer-wins
// register stamped with (lamport clock, client id). Replicas converge by
// exchanging Updates in any order; merging is commutative, associative and
// idempotent.
//
// ARCHITECTURE:
//
// Transactions:
// All local writes happen inside Transact. The function runs under the
// document mutex and never performs I/O, so a transaction is atomic with
// respect to observers and remote merges: observers receive exactly one
// UpdateEvent containing every op after the function returns.
//
// Records:
// Creating a record stamps its liveness register. Fields whose stamp is older
// than the latest creation are hidden, so re-creating a record under the same
// id never resurrects stale fields.
//
// Origins:
// Each transaction and each applied update carries an opaque origin. The relay
// provider uses it to avoid echoing remote updates back to the server.
package replica
