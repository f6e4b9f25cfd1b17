package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist
// within the caller's tenant.
var ErrNotFound = errors.New("storage: not found")
