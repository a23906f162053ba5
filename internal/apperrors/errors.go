package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPartialFailure = errors.New("partial failure")
	ErrStorage        = errors.New("storage failure")
)
