// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import "sync"

// RegistrationState is the connection lifecycle: Disconnected ->
// Connecting -> Connected -> Registering -> Registered, with Quitting as
// the controlled path back to Disconnected.
type RegistrationState int

const (
	StateDisconnected RegistrationState = iota
	StateConnecting
	StateConnected
	StateRegistering
	StateRegistered
	StateQuitting
)

func (s RegistrationState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateQuitting:
		return "quitting"
	default:
		return "unknown"
	}
}

// registrationEngine guards RegistrationState transitions. The protocol
// engine (builtin.go/conn.go) and Client.Quit are the only writers; readers
// call State().
type registrationEngine struct {
	mu    sync.RWMutex
	state RegistrationState
}

func newRegistrationEngine() *registrationEngine {
	return &registrationEngine{state: StateDisconnected}
}

// transition moves the engine to state unconditionally. Invalid-looking
// transitions (e.g. Registered -> Connecting without passing through
// Disconnected) are never requested by callers in this package, so no
// guard table is enforced here beyond recording the value.
func (e *registrationEngine) transition(state RegistrationState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// current returns the engine's current state.
func (e *registrationEngine) current() RegistrationState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// State returns the client's current registration state.
func (c *Client) State() RegistrationState {
	if c == nil || c.engine == nil {
		return StateDisconnected
	}
	return c.engine.current()
}
