package domain

import "errors"

var (
	// ErrInvalidInput is returned for malformed client input. The connection stays open.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownTarget means the addressed connection is not connected or not registered.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrNotRegistered means the sender has not registered yet.
	ErrNotRegistered = errors.New("not registered")
	// ErrNoCall means no call attempt in the required state exists for the pair.
	ErrNoCall = errors.New("no matching call")
	// ErrTransport is a failed send; the connection is treated as disconnected.
	ErrTransport = errors.New("transport error")
)
