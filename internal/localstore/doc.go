// Package localstore is the durable on-device copy of every project plus
// the process-wide migration flags.
//
// Projects are stored as canonical JSON together with their fingerprint
// (see internal/canon), so saving an unchanged project is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - Single connection: SQLite has one writer
package localstore
