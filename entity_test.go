// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityGraphUserLookup(t *testing.T) {
	g := newEntityGraph()

	u, created := g.GetUserByNick("Alice", true)
	require.NotNil(t, u)
	assert.True(t, created)

	// Nick lookup is case-insensitive.
	again, created := g.GetUserByNick("alice", true)
	assert.False(t, created)
	assert.Same(t, u, again)

	missing, created := g.GetUserByNick("nobody", false)
	assert.Nil(t, missing)
	assert.False(t, created)
}

func TestEntityGraphChannelLookup(t *testing.T) {
	g := newEntityGraph()

	ch, created := g.GetChannel("#Chan", true)
	require.NotNil(t, ch)
	assert.True(t, created)

	// Channel lookup is case-sensitive.
	other, created := g.GetChannel("#chan", true)
	assert.True(t, created)
	assert.NotSame(t, ch, other)
}

func TestEntityGraphServerLookup(t *testing.T) {
	g := newEntityGraph()

	s, created := g.GetServer("irc.example.com", true)
	require.NotNil(t, s)
	assert.True(t, created)

	again, created := g.GetServer("irc.example.com", true)
	assert.False(t, created)
	assert.Same(t, s, again)
}

func TestEntityGraphJoinNoDuplicates(t *testing.T) {
	g := newEntityGraph()

	ch, _ := g.GetChannel("#chan", true)
	u, _ := g.GetUserByNick("alice", true)

	cu := g.Join(u, ch)
	require.NotNil(t, cu)
	assert.Same(t, cu, g.Join(u, ch))
	assert.Equal(t, 1, ch.Len())

	// The binding is visible from both sides.
	assert.True(t, u.InChannel("#chan"))
	bound, ok := ch.lookupUser("alice")
	require.True(t, ok)
	assert.Same(t, u, bound.User)
	assert.Same(t, ch, bound.Channel)
}

func TestEntityGraphPart(t *testing.T) {
	g := newEntityGraph()

	ch, _ := g.GetChannel("#chan", true)
	u, _ := g.GetUserByNick("alice", true)
	g.Join(u, ch)

	g.Part(ch, "alice")
	assert.Equal(t, 0, ch.Len())
	assert.False(t, u.InChannel("#chan"))

	// No QUIT was observed, so alice remains known.
	known, _ := g.GetUserByNick("alice", false)
	assert.Same(t, u, known)
}

func TestEntityGraphReap(t *testing.T) {
	g := newEntityGraph()

	ch, _ := g.GetChannel("#chan", true)
	u, _ := g.GetUserByNick("alice", true)
	g.Join(u, ch)

	// A quit while still bound to a channel does not reap.
	g.reapUser(u, true)
	known, _ := g.GetUserByNick("alice", false)
	assert.NotNil(t, known)

	g.Part(ch, "alice")
	g.reapUser(u, true)
	known, _ = g.GetUserByNick("alice", false)
	assert.Nil(t, known)
}

func TestEntityGraphReapSparesLocalUser(t *testing.T) {
	g := newEntityGraph()
	local := newUser("me")
	g.reset(local)

	g.reapUser(local, true)
	known, _ := g.GetUserByNick("me", false)
	assert.Same(t, local, known)
}

func TestEntityGraphRename(t *testing.T) {
	g := newEntityGraph()

	ch, _ := g.GetChannel("#chan", true)
	u, _ := g.GetUserByNick("alice", true)
	g.Join(u, ch)

	renamed, ok := g.renameUser("alice", "alicia")
	require.True(t, ok)
	assert.Same(t, u, renamed)
	assert.Equal(t, "alicia", u.Nick)

	_, ok = ch.lookupUser("alice")
	assert.False(t, ok)
	cu, ok := ch.lookupUser("alicia")
	require.True(t, ok)
	assert.Same(t, u, cu.User)
}

func TestChannelUserModes(t *testing.T) {
	cu := &ChannelUser{}
	cu.setFromPrefix("@+", true)
	assert.Equal(t, "ov", cu.Modes())

	cu.setFromMode(CMode{name: 'o', add: false})
	assert.Equal(t, "v", cu.Modes())
}

func TestParseMessageTarget(t *testing.T) {
	tests := []struct {
		in   string
		want MessageTarget
		ok   bool
	}{
		{in: "#chan", want: MessageTarget{Kind: TargetChannel, Name: "#chan"}, ok: true},
		{in: "&local", want: MessageTarget{Kind: TargetChannel, Name: "&local"}, ok: true},
		{in: "alice", want: MessageTarget{Kind: TargetUser, Name: "alice"}, ok: true},
		{in: "$*.fi", want: MessageTarget{Kind: TargetServerMask, Mask: "*.fi"}, ok: true},
		{in: "#*.edu", want: MessageTarget{Kind: TargetHostMask, Mask: "*.edu"}, ok: true},
		{in: "", ok: false},
		{in: "1invalid", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseMessageTarget(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestUserCopy(t *testing.T) {
	u := newUser("alice")
	u.Ident = "a"
	u.Host = "host.int"
	u.RealName = "Alice"

	cp := u.Copy()
	assert.Equal(t, u.Nick, cp.Nick)
	assert.Equal(t, u.Ident, cp.Ident)
	assert.Equal(t, u.Host, cp.Host)
	assert.Equal(t, u.RealName, cp.RealName)

	cp.Nick = "other"
	assert.Equal(t, "alice", u.Nick)
}

func TestChannelCopy(t *testing.T) {
	g := newEntityGraph()
	ch, _ := g.GetChannel("#chan", true)
	u, _ := g.GetUserByNick("alice", true)
	g.Join(u, ch)
	ch.Topic = "the topic"

	cp := ch.Copy()
	assert.Equal(t, ch.Name, cp.Name)
	assert.Equal(t, ch.Topic, cp.Topic)
	assert.Equal(t, 1, cp.Len())
	assert.True(t, cp.UserIn("alice"))
}
