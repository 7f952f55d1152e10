package session

import "errors"

// Connection, command, and variable failures callers are expected to match
// on with errors.Is. Transport causes are attached by wrapping.
var (
	// ErrUnreachable means the NUT server could not be reached or refused
	// the handshake.
	ErrUnreachable = errors.New("server unreachable")

	// ErrDeviceNotFound means the server answered but does not expose the
	// requested UPS.
	ErrDeviceNotFound = errors.New("device not found on server")

	// ErrAlreadyConnected means Connect was called while a device is
	// already attached; an explicit Disconnect is required first.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrNotConnected means the operation needs an attached device.
	ErrNotConnected = errors.New("session not connected")

	// ErrReadOnlyVariable means the variable is not in the server's
	// writable set for this device.
	ErrReadOnlyVariable = errors.New("variable is not writable")

	// ErrCommandRejected means the device or server refused a command.
	ErrCommandRejected = errors.New("command rejected")

	// ErrVariableRejected means the device or server refused a variable
	// update.
	ErrVariableRejected = errors.New("variable update rejected")
)
