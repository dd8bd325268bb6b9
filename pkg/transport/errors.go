package transport

import "github.com/pkg/errors"

var (
	ErrDebuggerMustBeSet = errors.New("debugger must be set")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrUnknownLocus      = errors.New("unknown locus kind")
	ErrRequestFailed     = errors.New("request failed")
	ErrClosed            = errors.New("connection closed")
)
