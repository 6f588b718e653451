package service

import "errors"

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
)
