package reactor

import "errors"

var (
	// ErrAlreadyInitialized is returned by Init on a socket that is already open.
	ErrAlreadyInitialized = errors.New("reactor: socket already initialized")

	// ErrNotInitialized is returned when a socket is used before Init.
	ErrNotInitialized = errors.New("reactor: socket not initialized")

	// ErrInvalidSocket is returned when adding a closed socket to a server.
	ErrInvalidSocket = errors.New("reactor: socket has no open descriptor")

	// ErrUnknownSocket is returned when removing a socket that was never added.
	ErrUnknownSocket = errors.New("reactor: socket not registered")
)
