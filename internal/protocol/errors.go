package protocol

import "errors"

var (
	// ErrUnknownCommand is returned for a message whose type is not recognized.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedCommand is returned when a required field is missing or mistyped.
	ErrMalformedCommand = errors.New("malformed command")
)
