package globe

import "errors"

var (
	// ErrNotOnline is returned by submit while the relay is not reachable.
	ErrNotOnline = errors.New("connection is not online")
	// ErrEmptyPath is returned by submit when no points have been added.
	ErrEmptyPath = errors.New("path is empty")
	// ErrNotConnected is returned when emitting without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect while a connection is open
	// or being dialed.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrSendQueueFull is returned when outgoing frames back up.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrAlreadyMounted is returned by a second Mount without Unmount.
	ErrAlreadyMounted = errors.New("session already mounted")
)
