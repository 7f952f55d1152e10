// Package nut defines the boundary to a NUT (Network UPS Tools) server.
// The wire protocol itself lives in the underlying client library; this
// package only shapes it into the interface the session layer drives.
package nut

import "context"

// DefaultPort is the IANA-registered NUT server port.
const DefaultPort uint16 = 3493

// Client is one authenticated connection to a NUT server. Implementations
// are not required to be safe for concurrent use; the session layer
// serializes access.
type Client interface {
	// ListDevices returns device ID -> description for every UPS the
	// server exposes.
	ListDevices(ctx context.Context) (map[string]string, error)

	// Variables returns the current value of every variable of a device.
	Variables(ctx context.Context, device string) (map[string]string, error)

	// WritableVariables returns the names of variables the server permits
	// this client to modify.
	WritableVariables(ctx context.Context, device string) ([]string, error)

	// Commands returns command name -> description for a device.
	Commands(ctx context.Context, device string) (map[string]string, error)

	// RunCommand executes an instant command on a device.
	RunCommand(ctx context.Context, device, name string) error

	// SetVariable writes a variable on a device.
	SetVariable(ctx context.Context, device, name, value string) error

	// Close releases the connection. The client is unusable afterwards.
	Close() error
}

// Dialer opens a connection to a NUT server. Login and password are empty
// when the server does not require authentication.
type Dialer func(ctx context.Context, host string, port uint16, login, password string) (Client, error)
