package domain

import "errors"

var (
	// ErrInvalidTip is returned when a submission has no usable tip text.
	ErrInvalidTip = errors.New("tip must be a non-empty string")

	// ErrPipeline wraps any failure of the external reasoning pipeline.
	ErrPipeline = errors.New("pipeline failed")

	// ErrNotFound is returned by lookups with no matching records.
	ErrNotFound = errors.New("not found")
)
