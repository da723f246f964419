package oracle

import "errors"

var (
	// ErrUnavailable is returned when the analysis service cannot be reached
	// or answers with an error.
	ErrUnavailable = errors.New("oracle: unavailable")
	// ErrUnparseable is returned when the service answered but the reply is
	// not a usable analysis object.
	ErrUnparseable = errors.New("oracle: unparseable response")
)
