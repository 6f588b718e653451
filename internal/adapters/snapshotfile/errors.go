package snapshotfile

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported snapshot file format")
	ErrColumnLength      = errors.New("snapshot column length mismatch")
	ErrExists            = errors.New("snapshot file already exists")
)
