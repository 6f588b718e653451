package ingest

import "errors"

var (
	ErrNoStore  = errors.New("ingest: no store configured")
	ErrNoSource = errors.New("ingest: no source configured")
	ErrPersist  = errors.New("ingest: persist snapshot")
)
