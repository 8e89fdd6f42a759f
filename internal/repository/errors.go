package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates an identifier collision on insert.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict indicates the unit of work lost an optimistic-lock race and
	// may be retried.
	ErrConflict = errors.New("repository: conflict")
)
