package tree

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("no such condition")
	ErrWouldCycle = errors.New("would create a cycle")
	ErrNotAGroup  = errors.New("not a group")
	ErrIsRoot     = errors.New("operation not allowed on the root group")
	ErrDuplicate  = errors.New("duplicate condition id")
	ErrBadType    = errors.New("invalid condition type")
)

// Error reports a rejected tree operation. The tree is unchanged when an
// Error is returned.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op, id string, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}
