package scoring

import "errors"

var (
	// ErrUnknownPolicy is returned for a missing-data policy outside the closed set.
	ErrUnknownPolicy = errors.New("unknown missing policy")
	// ErrInvalidTopK is returned when fewer than one result is requested.
	ErrInvalidTopK = errors.New("topk must be at least 1")
	// ErrNoReader is returned when the engine has no latest-view reader.
	ErrNoReader = errors.New("scoring engine has no latest reader")
)
