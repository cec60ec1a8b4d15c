// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"strings"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map"
)

// state is the throwaway per-connection state for the client: the entity
// graph, ISUPPORT-derived feature map, CAP negotiation bookkeeping, the
// accumulating MOTD buffer, and the multi-reply collection lists. Reset on
// every (re)connect.
type state struct {
	*sync.RWMutex

	*entityGraph

	// nick, ident, and host are the client's own identity as confirmed by
	// the server (001, self-JOIN, WHO replies).
	nick, ident, host atomic.Value
	// network is the NETWORK name advertised via ISUPPORT.
	network atomic.Value

	serverOptions cmap.ConcurrentMap // ISUPPORT key -> value

	tmpCap     []string
	enabledCap []string

	motd strings.Builder

	// channelList, links, and stats accumulate LIST (321/322/323), LINKS
	// (364/365), and STATS (211-219) reply runs until their end numeric
	// dispatches them.
	channelList []ChannelListItem
	links       []LinkItem
	stats       []StatsEntry

	client *Client
}

// ChannelListItem is a single RPL_LIST (322) entry.
type ChannelListItem struct {
	Name      string
	UserCount int
	Topic     string
}

// LinkItem is a single RPL_LINKS (364) entry.
type LinkItem struct {
	Server string
	Mask   string
	Info   string
}

// StatsEntry is a single STATS reply line (numerics 211-218), kept raw
// since each query type has its own parameter layout.
type StatsEntry struct {
	Numeric string
	Params  []string
	Text    string
}

func newState(c *Client) *state {
	s := &state{
		RWMutex:       &sync.RWMutex{},
		entityGraph:   newEntityGraph(),
		serverOptions: cmap.New(),
		client:        c,
	}
	s.nick.Store("")
	s.ident.Store("")
	s.host.Store("")
	s.network.Store("")
	return s
}

// reset clears per-connection state. If initial is true, this is the very
// first reset for this Client (no stale entity graph to tear down).
func (s *state) reset(initial bool) {
	s.Lock()
	defer s.Unlock()

	s.nick.Store("")
	s.ident.Store("")
	s.host.Store("")
	s.network.Store("")

	local := newUser(s.client.Config.Nick)
	s.entityGraph.reset(local)
	s.serverOptions = cmap.New()
	s.tmpCap = nil
	s.enabledCap = nil
	s.motd.Reset()
	s.channelList = nil
	s.links = nil
	s.stats = nil
}

// setLocalNick records the client's own nickname, both in the fast atomic
// lookup and on the entity graph's local user.
func (s *state) setLocalNick(nick string) {
	s.nick.Store(nick)
	s.entityGraph.setLocalNick(nick)
}

// notify dispatches a synthetic, wire-less event of the given command
// through the handler registry, used for lifecycle signals (CONNECTED,
// CLOSED, UPDATE_STATE, ...) that have no line representation.
func (s *state) notify(c *Client, command string) {
	c.RunHandlers(&Event{Command: command})
}

// chanModes returns the server-advertised CHANMODES ISUPPORT value, or
// ModeDefaults if it hasn't arrived yet or looks malformed.
func (s *state) chanModes() string {
	if v, ok := s.serverOptions.Get("CHANMODES"); ok {
		if str, ok := v.(string); ok && isValidChannelMode(str) {
			return str
		}
	}
	return ModeDefaults
}

// userPrefixes returns the server-advertised PREFIX ISUPPORT value, or
// DefaultPrefixes if it hasn't arrived yet or looks malformed.
func (s *state) userPrefixes() string {
	if v, ok := s.serverOptions.Get("PREFIX"); ok {
		if str, ok := v.(string); ok && isValidUserPrefix(str) {
			return str
		}
	}
	return DefaultPrefixes
}

// GetServerOption returns the raw ISUPPORT value for key, if known.
func (c *Client) GetServerOption(key string) (string, bool) {
	v, ok := c.state.serverOptions.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}
