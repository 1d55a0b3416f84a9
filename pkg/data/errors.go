package data

import "errors"

var (
	// ErrNoOutput is returned by operations that need an initialized output.
	ErrNoOutput = errors.New("point set has no output")
	// ErrNoInput is returned by operations that need an input.
	ErrNoInput = errors.New("point set has no input")
	// ErrMissingAttribute is returned when a named attribute does not exist.
	ErrMissingAttribute = errors.New("missing attribute")
	// ErrTypeMismatch is returned when an attribute exists with another type.
	ErrTypeMismatch = errors.New("attribute type mismatch")
	// ErrMissingTag is returned when a point set lacks the tag a dictionary groups by.
	ErrMissingTag = errors.New("missing tag")
	// ErrIndexOutOfRange is returned for point indices outside the point array.
	ErrIndexOutOfRange = errors.New("point index out of range")
)
