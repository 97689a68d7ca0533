// Package util provides common utilities for the telnet relay implementation.
// This includes sentinel errors and typed error wrappers shared by the
// client, the server and the session layer.
package util

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// Sentinel errors for telnet relay operations.
var (
	// ErrSessionClosed indicates the session has already been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrServerClosed indicates the server has been shut down.
	ErrServerClosed = errors.New("server closed")

	// ErrInvalidPort indicates a port argument is not a number in 1-65535.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidOffer indicates a proactive offer used a verb other than WILL or DO.
	ErrInvalidOffer = errors.New("invalid negotiation offer")

	// ErrInvalidPolicy indicates an unknown negotiation policy name.
	ErrInvalidPolicy = errors.New("invalid negotiation policy")
)

// ConnectionError wraps an error with connection context.
// Use this when an error occurs at the connection level.
type ConnectionError struct {
	RemoteAddr string // Remote address of the connection
	Operation  string // The operation being performed
	Err        error  // The underlying error
}

// NewConnectionError creates a new ConnectionError with context.
func NewConnectionError(remoteAddr, operation string, err error) *ConnectionError {
	return &ConnectionError{
		RemoteAddr: remoteAddr,
		Operation:  operation,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.RemoteAddr == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.RemoteAddr, e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As support.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}

// IsClosedConn returns true if the error only reports that the peer went away
// or that the local side already closed the connection. Such errors end a
// relay normally rather than being surfaced as failures.
func IsClosedConn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return false
}
