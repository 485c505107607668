package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned when no live room (or archived result) matches a code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a final submission names a player with no answers.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrResultNotFound indicates the result archive has no record for a room.
	ErrResultNotFound = errors.New("room result not found")

	// ErrRejected is the base for operations that are well formed but invalid in the
	// room's current state.
	ErrRejected = errors.New("rejected")
	// ErrStartTooEarly is returned when a start request arrives before the scheduled time.
	ErrStartTooEarly = fmt.Errorf("%w: quiz has not reached its scheduled start", ErrRejected)
	// ErrAlreadyStarted is returned to every start request after the first successful one.
	ErrAlreadyStarted = fmt.Errorf("%w: quiz already started", ErrRejected)
	// ErrRoomNotActive is returned for submissions to a room that is not running.
	ErrRoomNotActive = fmt.Errorf("%w: room not active", ErrRejected)

	// ErrInvalidInput is the base for malformed payloads.
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, reason)
}
