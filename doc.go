// Copyright 2016-2017 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package ircore implements the core of an IRC client: a line-oriented wire
// codec, a flood-preventing send scheduler, the transport, a command/numeric
// dispatcher, a mutable entity graph of users/channels/servers, the
// registration state machine and protocol handlers, and a CTCP sublayer.
//
// It does not include a bot framework, DCC, persistent history, or
// multi-network orchestration; those are left to callers built on top of
// this package.
package ircore
