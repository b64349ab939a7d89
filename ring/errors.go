package ring

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrShapeMismatch is returned when a batch's channel count or row lengths disagree with its
	// timestamp vector. This is the only fatal ingestion error; it indicates a producer bug.
	ErrShapeMismatch = eris.New("batch shape does not match timestamp vector")

	ErrInvalidDimensions = eris.New("channels, duration and rate must all be positive")
	ErrEmptySnapshot     = eris.New("snapshot holds no samples")
)
