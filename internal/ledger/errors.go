package ledger

import (
	"errors"
	"fmt"
)

var ErrUnknownUser = errors.New("ledger: unknown user")

// PersistenceError scopes a storage failure to the one user it affected.
type PersistenceError struct {
	UserID int64
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger: %s user %d: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
