// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import "strings"

// CMode is a single parsed mode change: add/remove a named mode, with an
// optional parameter.
type CMode struct {
	add     bool
	name    byte
	setting bool
	args    string
}

// Short returns the "+x"/"-x" form of the mode, without its parameter.
func (c *CMode) Short() string {
	status := "+"
	if !c.add {
		status = "-"
	}
	return status + string(c.name)
}

func (c *CMode) String() string {
	if len(c.args) == 0 {
		return c.Short()
	}
	return c.Short() + " " + c.args
}

// CModes is a channel's current mode set, along with the server's
// ISUPPORT-declared mode grammar needed to parse further changes.
type CModes struct {
	raw           string
	modesListArgs string
	modesArgs     string
	modesSetArgs  string
	modesNoArgs   string

	prefixes string
	modes    []CMode
}

func (c *CModes) String() string {
	var out, args string

	if len(c.modes) > 0 {
		out += "+"
	}
	for i := 0; i < len(c.modes); i++ {
		out += string(c.modes[i].name)
		if len(c.modes[i].args) > 0 {
			args += " " + c.modes[i].args
		}
	}

	return out + args
}

// hasArg implements the RFC 2811 A/B/C/D channel-mode parameter rules:
// A modes (list: ban, except, invite) always consume a parameter; B modes
// always consume a parameter; C modes consume a parameter only when being
// set; D modes (and channel-user-mode prefixes) never/always consume per
// their own rule.
func (c *CModes) hasArg(set bool, mode byte) (hasArgs, isSetting bool) {
	if len(c.raw) < 1 {
		return false, true
	}

	if strings.IndexByte(c.modesListArgs, mode) > -1 {
		return true, false
	}
	if strings.IndexByte(c.modesArgs, mode) > -1 {
		return true, true
	}
	if strings.IndexByte(c.modesSetArgs, mode) > -1 {
		return set, true
	}
	if strings.IndexByte(c.prefixes, mode) > -1 {
		return true, false
	}

	return false, true
}

// apply merges a parsed set of mode changes into the channel's current
// mode set: added settings modes replace same-named ones, removed modes
// are dropped, the rest appended.
func (c *CModes) apply(modes []CMode) {
	var out []CMode

	for j := 0; j < len(c.modes); j++ {
		replaced, removed := false, false
		for i := 0; i < len(modes); i++ {
			if !modes[i].setting || c.modes[j].name != modes[i].name {
				continue
			}
			if modes[i].add {
				out = append(out, modes[i])
				replaced = true
			} else {
				removed = true
			}
			break
		}
		if !replaced && !removed {
			out = append(out, c.modes[j])
		}
	}

	for i := 0; i < len(modes); i++ {
		if !modes[i].setting || !modes[i].add {
			continue
		}
		present := false
		for j := 0; j < len(out); j++ {
			if modes[i].name == out[j].name {
				present = true
				break
			}
		}
		if !present {
			out = append(out, modes[i])
		}
	}

	c.modes = out
}

// parse walks a "+/-letters" flag string plus any follow-up parameters,
// toggling add/remove on each "+"/"-" and consuming parameters per hasArg.
func (c *CModes) parse(flags string, args []string) (out []CMode) {
	add := true
	var argCount int

	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}

		mode := CMode{name: flags[i], add: add}

		hasArgs, isSetting := c.hasArg(add, flags[i])
		if hasArgs && len(args) >= argCount+1 {
			mode.args = args[argCount]
			argCount++
		}
		mode.setting = isSetting

		out = append(out, mode)
	}

	return out
}

func newCModes(channelModes, userPrefixes string) CModes {
	c := CModes{modes: []CMode{}}
	c.setGrammar(channelModes, userPrefixes)
	return c
}

// setGrammar replaces the CHANMODES/PREFIX grammar used to parse further
// mode strings, leaving the currently applied modes intact. Used when
// ISUPPORT arrives after the channel was first seen.
func (c *CModes) setGrammar(channelModes, userPrefixes string) {
	split := strings.SplitN(channelModes, ",", 4)
	for len(split) < 4 {
		split = append(split, "")
	}

	c.raw = channelModes
	c.modesListArgs = split[0]
	c.modesArgs = split[1]
	c.modesSetArgs = split[2]
	c.modesNoArgs = split[3]
	c.prefixes = userPrefixes
}

func isValidChannelMode(raw string) bool {
	if len(raw) < 1 {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != ',' && (raw[i] < 'A' || raw[i] > 'Z') && (raw[i] < 'a' || raw[i] > 'z') {
			return false
		}
	}
	return true
}

// isValidUserPrefix validates the ISUPPORT PREFIX token shape
// "(modes)prefixes", requiring as many prefix characters as mode letters.
func isValidUserPrefix(raw string) bool {
	if len(raw) < 1 || raw[0] != '(' {
		return false
	}

	var keys, reps int
	var passedKeys bool

	for i := 1; i < len(raw); i++ {
		if raw[i] == ')' {
			passedKeys = true
			continue
		}
		if passedKeys {
			reps++
		} else {
			keys++
		}
	}

	return keys == reps
}

func parsePrefixes(raw string) (modes, prefixes string) {
	if !isValidUserPrefix(raw) {
		return "", ""
	}
	i := strings.Index(raw, ")")
	if i < 1 {
		return "", ""
	}
	return raw[1:i], raw[i+1:]
}

// ChannelUserModes returns the mode letters the server attaches to channel
// roles ("ov" by default, possibly more via ISUPPORT PREFIX).
func (c *Client) ChannelUserModes() string {
	modes, _ := parsePrefixes(c.state.userPrefixes())
	return modes
}

// ModeForPrefix maps a NAMES nick-prefix character (e.g. '@') to its mode
// letter (e.g. 'o'), per the server's PREFIX declaration.
func (c *Client) ModeForPrefix(prefix byte) (mode byte, ok bool) {
	modes, prefixes := parsePrefixes(c.state.userPrefixes())
	i := strings.IndexByte(prefixes, prefix)
	if i < 0 || i >= len(modes) {
		return 0, false
	}
	return modes[i], true
}

// PrefixForMode is the inverse of ModeForPrefix.
func (c *Client) PrefixForMode(mode byte) (prefix byte, ok bool) {
	modes, prefixes := parsePrefixes(c.state.userPrefixes())
	i := strings.IndexByte(modes, mode)
	if i < 0 || i >= len(prefixes) {
		return 0, false
	}
	return prefixes[i], true
}

// handleMODE applies an incoming MODE (or RPL_CHANNELMODEIS) to channel
// state and updates affected ChannelUser permissions.
func handleMODE(c *Client, e *Event) {
	if e.Command == RPL_CHANNELMODEIS && len(e.Params) > 2 {
		e = e.Copy()
		e.Params = e.Params[1:]
	}

	if len(e.Params) < 2 || !IsValidChannel(e.Params[0]) {
		return
	}

	channel, ok := c.state.LookupChannel(e.Params[0])
	if !ok {
		return
	}

	// Re-derive the mode grammar in case ISUPPORT arrived after the channel
	// was first seen.
	channel.Modes.setGrammar(c.state.chanModes(), c.state.userPrefixes())

	flags := e.Params[1]
	var args []string
	if len(e.Params) > 2 {
		args = append(args, e.Params[2:]...)
	}

	modes := channel.Modes.parse(flags, args)
	channel.Modes.apply(modes)

	for i := 0; i < len(modes); i++ {
		if modes[i].setting || len(modes[i].args) == 0 {
			continue
		}
		if cu, ok := channel.lookupUser(modes[i].args); ok {
			cu.setFromMode(modes[i])
		}
	}

	c.state.notify(c, UPDATE_STATE)
	c.dispatchTyped(evChannelModesChanged, ChannelModesChanged{Channel: channel.Name, Modes: flags, By: e.Source})
}

// UserPerms holds a user's per-channel role, derived from channel-user
// modes and their nick-prefix equivalents.
type UserPerms struct {
	Owner  bool
	Admin  bool
	Op     bool
	HalfOp bool
	Voice  bool
}

// IsAdmin indicates ban/kick-capable trust (op or above).
func (m UserPerms) IsAdmin() bool {
	return m.Owner || m.Admin || m.Op
}

// IsTrusted indicates any elevated permission at all, including voice.
func (m UserPerms) IsTrusted() bool {
	return m.IsAdmin() || m.HalfOp || m.Voice
}

func (m *UserPerms) reset() {
	*m = UserPerms{}
}

// set translates raw nick-prefix characters (e.g. "@+") into permissions.
func (m *UserPerms) set(prefix string, replace bool) {
	if replace {
		m.reset()
	}

	for i := 0; i < len(prefix); i++ {
		switch string(prefix[i]) {
		case OwnerPrefix:
			m.Owner = true
		case AdminPrefix:
			m.Admin = true
		case OperatorPrefix:
			m.Op = true
		case HalfOperatorPrefix:
			m.HalfOp = true
		case VoicePrefix:
			m.Voice = true
		}
	}
}

func (m *UserPerms) setFromMode(mode CMode) {
	switch string(mode.name) {
	case ModeOwner:
		m.Owner = mode.add
	case ModeAdmin:
		m.Admin = mode.add
	case ModeOperator:
		m.Op = mode.add
	case ModeHalfOperator:
		m.HalfOp = mode.add
	case ModeVoice:
		m.Voice = mode.add
	}
}

// parseUserPrefix parses a raw NAMES-reply entry, like "@user" or "@+user".
// With userhost-in-names enabled the remainder may be a full
// nick!user@host mask; the caller decides how to split that.
func parseUserPrefix(raw string) (modes, nick string, success bool) {
	for i := 0; i < len(raw); i++ {
		char := string(raw[i])

		if char == OwnerPrefix || char == AdminPrefix || char == HalfOperatorPrefix ||
			char == OperatorPrefix || char == VoicePrefix {
			modes += char
			continue
		}

		// The rest of the entry is the nickname (or mask).
		nick = raw[i:]
		return modes, nick, true
	}

	return modes, nick, false
}
