package service

import "errors"

// Validation errors are returned before any state is touched.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidResult = errors.New("invalid result: draws are not supported")
)

// Match lifecycle errors
var (
	ErrNoActiveMatch = errors.New("no active match")
	ErrAlreadyScored = errors.New("team score already set")
)

// ErrPersistence wraps storage failures during a rating or history update.
// The update was not applied and the active match is kept for a retry.
var ErrPersistence = errors.New("persistence failure")
