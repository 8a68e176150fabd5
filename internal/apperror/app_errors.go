package apperror

import "errors"

var (
	ErrInvalidMove     = errors.New("invalid move")
	ErrSessionNotFound = errors.New("session not found")
	ErrCorruptedState  = errors.New("corrupted game state")
)
