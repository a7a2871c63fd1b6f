package transport

import "errors"

var (
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrFrameTooLarge     = errors.New("frame exceeds size limit")
)
