package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNotReady           = errors.New("not ready")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrWaitTimeout        = errors.New("wait timeout")
	ErrProviderFailure    = errors.New("provider failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrInvalidTransition  = errors.New("invalid state transition")
)
