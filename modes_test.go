// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCModesParse(t *testing.T) {
	cm := newCModes(ModeDefaults, DefaultPrefixes)

	// List (A) and always-arg (B) modes consume a parameter whether set or
	// unset; set-only (C) modes consume one only when adding; D modes never.
	modes := cm.parse("+bkl", []string{"*!*@host", "sekret", "25"})
	require.Len(t, modes, 3)

	assert.Equal(t, "+b", modes[0].Short())
	assert.Equal(t, "*!*@host", modes[0].args)
	assert.False(t, modes[0].setting)

	assert.Equal(t, "+k", modes[1].Short())
	assert.Equal(t, "sekret", modes[1].args)
	assert.True(t, modes[1].setting)

	assert.Equal(t, "+l", modes[2].Short())
	assert.Equal(t, "25", modes[2].args)
}

func TestCModesParseRemoval(t *testing.T) {
	cm := newCModes(ModeDefaults, DefaultPrefixes)

	// Removing a limit (C mode) consumes no parameter; removing a ban (A
	// mode) still does.
	modes := cm.parse("-lb", []string{"*!*@host"})
	require.Len(t, modes, 2)

	assert.Equal(t, "-l", modes[0].Short())
	assert.Empty(t, modes[0].args)

	assert.Equal(t, "-b", modes[1].Short())
	assert.Equal(t, "*!*@host", modes[1].args)
}

func TestCModesParsePrefixModes(t *testing.T) {
	cm := newCModes(ModeDefaults, DefaultPrefixes)

	modes := cm.parse("+ov", []string{"alice", "bob"})
	require.Len(t, modes, 2)
	assert.Equal(t, "alice", modes[0].args)
	assert.Equal(t, "bob", modes[1].args)
	assert.False(t, modes[0].setting)
}

func TestCModesApply(t *testing.T) {
	cm := newCModes(ModeDefaults, DefaultPrefixes)

	cm.apply(cm.parse("+nt", nil))
	assert.Equal(t, "+nt", cm.String())

	cm.apply(cm.parse("+k", []string{"sekret"}))
	assert.Contains(t, cm.String(), "k")
	assert.Contains(t, cm.String(), "sekret")

	cm.apply(cm.parse("-t", nil))
	assert.Contains(t, cm.String(), "n")
	assert.Equal(t, "+nk sekret", cm.String())
}

func TestIsValidUserPrefix(t *testing.T) {
	assert.True(t, isValidUserPrefix("(ov)@+"))
	assert.True(t, isValidUserPrefix("(qaohv)~&@%+"))
	assert.False(t, isValidUserPrefix("(ov)@"))
	assert.False(t, isValidUserPrefix("ov)@+"))
	assert.False(t, isValidUserPrefix(""))
}

func TestParsePrefixes(t *testing.T) {
	modes, prefixes := parsePrefixes("(ov)@+")
	assert.Equal(t, "ov", modes)
	assert.Equal(t, "@+", prefixes)

	modes, prefixes = parsePrefixes("bogus")
	assert.Empty(t, modes)
	assert.Empty(t, prefixes)
}

func TestParseUserPrefix(t *testing.T) {
	modes, nick, ok := parseUserPrefix("@alice")
	require.True(t, ok)
	assert.Equal(t, "@", modes)
	assert.Equal(t, "alice", nick)

	modes, nick, ok = parseUserPrefix("@+bob")
	require.True(t, ok)
	assert.Equal(t, "@+", modes)
	assert.Equal(t, "bob", nick)

	// userhost-in-names hands back a full mask after the prefix characters.
	modes, nick, ok = parseUserPrefix("@carol!c@host.int")
	require.True(t, ok)
	assert.Equal(t, "@", modes)
	assert.Equal(t, "carol!c@host.int", nick)

	_, _, ok = parseUserPrefix("")
	assert.False(t, ok)
}

func TestUserPermsSet(t *testing.T) {
	var p UserPerms
	p.set("@+", true)
	assert.True(t, p.Op)
	assert.True(t, p.Voice)
	assert.True(t, p.IsAdmin())
	assert.True(t, p.IsTrusted())

	p.set("+", true)
	assert.False(t, p.Op)
	assert.True(t, p.Voice)
	assert.False(t, p.IsAdmin())
	assert.True(t, p.IsTrusted())
}

func TestHandleMODEChannel(t *testing.T) {
	c := New(Config{Server: "dummy.int", Nick: "test", User: "test"})

	c.state.Lock()
	channel, _ := c.state.GetChannel("#chan", true)
	alice, _ := c.state.GetUserByNick("alice", true)
	c.state.Join(alice, channel)
	c.state.Unlock()

	handleMODE(c, ParseEvent(":op!o@h MODE #chan +ov alice alice"))

	cu, ok := channel.lookupUser("alice")
	require.True(t, ok)
	assert.True(t, cu.Perms.Op)
	assert.True(t, cu.Perms.Voice)

	handleMODE(c, ParseEvent(":op!o@h MODE #chan -o alice"))
	assert.False(t, cu.Perms.Op)
	assert.True(t, cu.Perms.Voice)
}
