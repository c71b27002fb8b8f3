package core

import "errors"

var (
	// ErrCoordinatorStopped is returned by requests issued after the coordinator exited.
	ErrCoordinatorStopped = errors.New("coordinator stopped")
	// ErrSinkFull is returned when a recipient's queue has no room.
	ErrSinkFull = errors.New("sink full")
	// ErrSinkClosed is returned when a recipient's connection is going away.
	ErrSinkClosed = errors.New("sink closed")
	// ErrSinkNotAttached is returned for recipients still completing their handshake.
	ErrSinkNotAttached = errors.New("sink not attached")
)
