package config

import "errors"

var (
	ErrInvalidURL   = errors.New("invalid server url")
	ErrInvalidValue = errors.New("invalid config value")
)
