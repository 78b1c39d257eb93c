package vector

import "errors"

// Domain errors.
var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrDimensionMismatch = errors.New("vector dimension does not match index dimension")
	ErrInvalidChunkSize  = errors.New("chunk size must be at least 1")
	ErrInvalidTopK       = errors.New("topK must be at least 1")
)
