package model

import "errors"

// Sentinel errors returned by the engine. Handlers map these to HTTP statuses;
// anything else is treated as a storage failure.
var (
	ErrTreasureNotFound  = errors.New("treasure not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrTooFar            = errors.New("too far from treasure")
	ErrAlreadyDiscovered = errors.New("treasure already discovered")
	ErrGameInactive      = errors.New("game is not active")
	ErrTimeout           = errors.New("operation timed out")
)
