package contract

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrModelResponse   = errors.New("model produced no usable response")
	ErrSuperseded      = errors.New("request superseded by a newer one")
)
