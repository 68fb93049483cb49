package renders

import "errors"

var (
	// ErrNotFound indicates a render was not found for the session.
	ErrNotFound = errors.New("render not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")
)
