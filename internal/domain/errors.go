package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidIndex    = errors.New("invalid index")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrContentMismatch = errors.New("content does not match element type")
	ErrInvalidViewport = errors.New("invalid viewport")
	ErrVersionConflict = errors.New("version conflict")
)
