// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by Connect (and ParseEndpoint) when the
// supplied Config or endpoint is missing required fields or is malformed.
type ErrInvalidConfig struct {
	Config Config
	Err    error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Err)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.Err }

// ErrNotConnected is returned by methods that require an active connection.
var ErrNotConnected = errors.New("client is not connected to a server")

// ArgumentError describes a failed argument precondition (invalid target,
// too many parameters, etc). It never touches the connection. The command
// builders in commands.go do not return it: they report a bad target as
// *ErrInvalidTarget.
type ArgumentError struct {
	Target string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid argument: %q", e.Target)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Target, e.Reason)
}

// ErrInvalidTarget is returned by command builders when the supplied
// nick/channel/user target fails validation before anything is sent.
type ErrInvalidTarget struct{ Target string }

func (e *ErrInvalidTarget) Error() string { return fmt.Sprintf("invalid target: %q", e.Target) }

// TransportError wraps a socket, DNS, or TLS failure while dialing: Connect
// returns it, and the CONNECT_FAILED event carries its text. Read and write
// errors on an established connection are not wrapped in it; Connect
// returns them as they are.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %s", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

func wrapTransportError(err error) *TransportError {
	return &TransportError{Cause: errors.Wrap(err, "transport")}
}

// ProtocolError represents a numeric reply >= 400 that maps to a protocol
// failure (e.g. 432 erroneous nickname, 433 nickname collision). Not fatal
// by default; the caller decides what to do with it.
type ProtocolError struct {
	Code    string
	Params  []string
	Message string
	cause   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %s: %s", e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.cause }

func newProtocolError(e *Event) *ProtocolError {
	return &ProtocolError{
		Code:    e.Command,
		Params:  e.Params,
		Message: e.Trailing,
		cause:   errors.Errorf("numeric %s: %s", e.Command, e.Trailing),
	}
}

// ServerErrorMessage wraps an unsolicited ERROR command from the server. A
// disconnect is expected to follow shortly after.
type ServerErrorMessage struct {
	Message string
	cause   error
}

func (e *ServerErrorMessage) Error() string { return fmt.Sprintf("server error: %s", e.Message) }
func (e *ServerErrorMessage) Unwrap() error { return e.cause }

func newServerErrorMessage(text string) *ServerErrorMessage {
	return &ServerErrorMessage{Message: text, cause: errors.New(text)}
}

// InvalidCommand is returned by the line codec when a command is empty or
// contains a byte that cannot legally appear in a command.
type InvalidCommand struct{ Command string }

func (e *InvalidCommand) Error() string { return fmt.Sprintf("invalid command: %q", e.Command) }

// InvalidParameter is returned by the line codec when a parameter violates
// the middle/trailing parameter rules.
type InvalidParameter struct {
	Param  string
	Reason string
}

func (e *InvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// TooManyParameters is returned by the line codec when more than 15
// parameters are supplied.
type TooManyParameters struct{ Count int }

func (e *TooManyParameters) Error() string {
	return fmt.Sprintf("too many parameters: %d (max 15)", e.Count)
}
