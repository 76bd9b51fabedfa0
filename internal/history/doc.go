// Package history records user commands for undo and redo.
//
// A Command is a list of record-level Changes, each carrying the field values
// before and after the edit. Inverse() swaps them, so undo and redo replay
// through the same path as any other write. Undo is a local convenience, not
// a distributed rollback: a concurrent remote edit to the same field is
// resolved last-writer-wins by the replicated document like any other write.
package history
