package room

import "errors"

var (
	// ErrForbidden is the authorization rejection: missing or wrong
	// password at join. Distinct from every other failure so the
	// transport can answer with a 403-equivalent.
	ErrForbidden = errors.New("room: password required or incorrect")

	ErrDisposed    = errors.New("room: disposed")
	ErrNotFound    = errors.New("room: not found")
	ErrIDExhausted = errors.New("room: id allocation retries exhausted")
)
