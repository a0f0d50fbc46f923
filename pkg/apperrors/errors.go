package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyQuery       = errors.New("query text is empty")
	ErrQueryTooLong     = errors.New("query text exceeds maximum length")
	ErrInvalidRole      = errors.New("invalid role")
	ErrTableNotAllowed  = errors.New("table not allowed for role")
	ErrNoModelAvailable = errors.New("no active model for capability")
	ErrNotDataQuery     = errors.New("not a data query")
)
