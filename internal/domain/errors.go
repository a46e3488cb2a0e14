package domain

import "errors"

// Expected failure modes. These cross component boundaries as values,
// never as panics.
var (
	ErrSceneNotFound   = errors.New("scene not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyInput      = errors.New("empty user input")
	ErrSessionEnded    = errors.New("session already ended")
	ErrTurnInProgress  = errors.New("turn already in progress")
)
