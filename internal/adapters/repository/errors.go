package repository

import "errors"

// Sentinel errors for snapshot storage.
var (
	ErrClosed        = errors.New("snapshot store closed")
	ErrEmptyKey      = errors.New("row has empty canonical model key")
	ErrMixedSnapshot = errors.New("rows in one snapshot must share snapshot_ts")
	ErrUnknownDriver = errors.New("unknown store driver")
)
