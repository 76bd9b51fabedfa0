package migration

import (
	"errors"
	"fmt"
)

// ErrOffline is returned by RunMigration when the client is not online. The
// migration is deferred to a later run.
var ErrOffline = errors.New("migration: offline, deferred")

// IntegrityError reports a project whose downloaded copy does not match the
// local one.
type IntegrityError struct {
	ProjectID string
	Reason    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for project %s: %s", e.ProjectID, e.Reason)
}

// IsIntegrityError reports whether err is an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// Failure is one project that did not make it through a pass.
type Failure struct {
	ProjectID string
	Err       error
}
