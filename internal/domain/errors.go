package domain

import "errors"

var (
	// ErrStore wraps any failure reading or writing player progress.
	ErrStore = errors.New("session store failure")
	// ErrClosed is returned when a round is requested after shutdown began.
	ErrClosed = errors.New("round service closed")
	// ErrNotConnected is returned by presenters that have no live client for a user.
	ErrNotConnected = errors.New("no client connected")
	// ErrUnknownCategory rejects catalog entries naming an unregistered category.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownDifficulty rejects catalog entries with an unsupported difficulty.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrInvalidQuestion rejects catalog entries with missing or inconsistent fields.
	ErrInvalidQuestion = errors.New("invalid question")
)
