package autoschedule

import "errors"

var (
	ErrValidation   = errors.New("invalid scheduling request")
	ErrUnauthorized = errors.New("caller identity not resolved")
	ErrNotFound     = errors.New("no matching tasks found")
)
