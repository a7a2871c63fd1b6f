package protocol

import "errors"

// Decode failures. Every error returned by Decode wraps exactly one of these
// so callers can log the reason class.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidShape   = errors.New("invalid message shape")
)

var ErrInvalidCommand = errors.New("invalid command")
