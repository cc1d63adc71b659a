package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidKind = errors.New("invalid reservation kind")

	ErrEmptyPatch = errors.New("reservation patch has no fields")
)
