// Package migration moves projects that only exist in the local store into
// the shared store, and later removes the local backups.
//
// RunMigration uploads every user project, downloads it straight back and
// checks the copy with domain.ProjectsAreEqual. Only a batch with zero
// failures sets the global complete flag. Local copies are never deleted
// during this pass.
//
// CleanupMigrationBackup runs on every start. Once the cleanup delay (48h by
// default) has passed since the recorded migration, it re-verifies each
// local project against a fresh download and deletes the local copy only
// when that second check passes.
//
// The complete flag is global, not per project: a project created locally
// after a completed migration is never migrated automatically.
package migration
