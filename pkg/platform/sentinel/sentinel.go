package sentinel

import "errors"

// Sentinel errors for storage and adapter facts. Stores return these (wrapped
// with context) and services translate them into coded domain errors.
//
//   - ErrNotFound: no record under the requested key
//   - ErrAlreadyExists: a record with the same key is already stored
//   - ErrInvalidState: the record cannot accept the requested transition
//   - ErrUnavailable: an adapter or backing service cannot be reached
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
