// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"strings"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// ChannelType classifies a channel by the leading character of its
// RPL_NAMREPLY line.
type ChannelType byte

const (
	ChannelUnspecified ChannelType = 0
	ChannelPublic      ChannelType = '='
	ChannelPrivate     ChannelType = '*'
	ChannelSecret      ChannelType = '@'
)

// User is an IRC user known to the client, created lazily the first time
// it is referenced (source parsing, WHO/WHOIS reply, NAMES, JOIN), and
// destroyed once no channel membership references it and a QUIT has been
// observed. See (*entityGraph).reapUser.
type User struct {
	mu sync.RWMutex

	Nick       string
	Ident      string
	Host       string
	RealName   string
	ServerName string
	Account    string

	IsOperator bool
	IsAway     bool
	AwayMessage string
	IsOnline   bool

	HopCount  int
	Idle      time.Duration
	LoginTime time.Time
	seen      time.Time

	// channels is a weak back-link map of lower-cased channel name ->
	// the ChannelUser binding this user has in that channel.
	channels map[string]*ChannelUser
}

func newUser(nick string) *User {
	return &User{
		Nick:     nick,
		IsOnline: true,
		seen:     time.Now(),
	}
}

// Channels returns the channels this user currently shares with the
// client, in no particular order.
func (u *User) Channels() []*ChannelUser {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make([]*ChannelUser, 0, len(u.channels))
	for _, cu := range u.channels {
		out = append(out, cu)
	}
	return out
}

func (u *User) addChannel(cu *ChannelUser) {
	u.mu.Lock()
	if u.channels == nil {
		u.channels = make(map[string]*ChannelUser)
	}
	u.channels[strings.ToLower(cu.Channel.Name)] = cu
	u.mu.Unlock()
}

func (u *User) removeChannel(name string) {
	u.mu.Lock()
	delete(u.channels, strings.ToLower(name))
	u.mu.Unlock()
}

func (u *User) channelCount() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.channels)
}

// InChannel reports whether the user shares channel name with the client.
func (u *User) InChannel(name string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.channels[strings.ToLower(name)]
	return ok
}

// Copy returns a snapshot of the user, safe to hold outside the handler
// path. Channel back-links are not carried over.
func (u *User) Copy() *User {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := &User{
		Nick:        u.Nick,
		Ident:       u.Ident,
		Host:        u.Host,
		RealName:    u.RealName,
		ServerName:  u.ServerName,
		Account:     u.Account,
		IsOperator:  u.IsOperator,
		IsAway:      u.IsAway,
		AwayMessage: u.AwayMessage,
		IsOnline:    u.IsOnline,
		HopCount:    u.HopCount,
		Idle:        u.Idle,
		LoginTime:   u.LoginTime,
		seen:        u.seen,
	}
	return out
}

// Channel is a joined or observed IRC channel. Invariants: each user
// appears at most once (enforced by keying users by lower-cased nick);
// Type is derived from the leading RPL_NAMREPLY character.
type Channel struct {
	Name  string
	Type  ChannelType
	Topic string
	Modes CModes

	Joined time.Time

	users cmap.ConcurrentMap
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:   name,
		Modes:  newCModes(ModeDefaults, DefaultPrefixes),
		Joined: time.Now(),
		users:  cmap.New(),
	}
}

// Users returns every ChannelUser bound to this channel.
func (c *Channel) Users() []*ChannelUser {
	out := make([]*ChannelUser, 0, c.users.Count())
	for item := range c.users.IterBuffered() {
		out = append(out, item.Val.(*ChannelUser))
	}
	return out
}

// Len returns the number of users bound to this channel.
func (c *Channel) Len() int { return c.users.Count() }

// Trusted returns the users that hold voice or greater in this channel. See
// UserPerms.IsTrusted for the permission threshold.
func (c *Channel) Trusted(client *Client) []*User {
	var out []*User
	for item := range c.users.IterBuffered() {
		cu := item.Val.(*ChannelUser)
		if cu.Perms.IsTrusted() {
			out = append(out, cu.User)
		}
	}
	return out
}

// Admins returns the users that hold half-op (if supported) or greater in
// this channel. See UserPerms.IsAdmin for the permission threshold.
func (c *Channel) Admins(client *Client) []*User {
	var out []*User
	for item := range c.users.IterBuffered() {
		cu := item.Val.(*ChannelUser)
		if cu.Perms.IsAdmin() {
			out = append(out, cu.User)
		}
	}
	return out
}

// UserIn reports whether nick is bound to this channel.
func (c *Channel) UserIn(nick string) bool {
	_, ok := c.users.Get(strings.ToLower(nick))
	return ok
}

func (c *Channel) lookupUser(nick string) (*ChannelUser, bool) {
	v, ok := c.users.Get(strings.ToLower(nick))
	if !ok {
		return nil, false
	}
	return v.(*ChannelUser), true
}

func (c *Channel) addUser(cu *ChannelUser) {
	c.users.Set(strings.ToLower(cu.User.Nick), cu)
}

func (c *Channel) removeUser(nick string) {
	c.users.Remove(strings.ToLower(nick))
}

// Copy returns a snapshot of the channel, including its current member
// bindings.
func (c *Channel) Copy() *Channel {
	out := &Channel{
		Name:   c.Name,
		Type:   c.Type,
		Topic:  c.Topic,
		Modes:  c.Modes,
		Joined: c.Joined,
		users:  cmap.New(),
	}
	for item := range c.users.IterBuffered() {
		out.users.Set(item.Key, item.Val)
	}
	return out
}

// ChannelUser binds a User to a Channel with the per-channel modes
// (operator, voice, etc) that user holds there. Invariant:
// cu.Channel.users.contains(cu) && cu.User is a member of the client's
// user registry.
type ChannelUser struct {
	User    *User
	Channel *Channel

	mu    sync.RWMutex
	Perms UserPerms
}

// Modes returns the set of channel-user-mode characters currently applied
// (e.g. "ov" for a user who is both operator and voiced).
func (cu *ChannelUser) Modes() string {
	cu.mu.RLock()
	defer cu.mu.RUnlock()

	var out strings.Builder
	if cu.Perms.Owner {
		out.WriteString(ModeOwner)
	}
	if cu.Perms.Admin {
		out.WriteString(ModeAdmin)
	}
	if cu.Perms.Op {
		out.WriteString(ModeOperator)
	}
	if cu.Perms.HalfOp {
		out.WriteString(ModeHalfOperator)
	}
	if cu.Perms.Voice {
		out.WriteString(ModeVoice)
	}
	return out.String()
}

func (cu *ChannelUser) setFromMode(mode CMode) {
	cu.mu.Lock()
	cu.Perms.setFromMode(mode)
	cu.mu.Unlock()
}

func (cu *ChannelUser) setFromPrefix(prefixes string, replace bool) {
	cu.mu.Lock()
	cu.Perms.set(prefixes, !replace)
	cu.mu.Unlock()
}

// Server is a server known to the client (the one it's connected to, or
// one mentioned by a LINKS/WHOIS reply). Created on first mention, never
// removed while connected.
type Server struct {
	HostName string

	Network        string
	Version        string
	Compiled       time.Time
	UserCount      int
	MaxUserCount   int
	LocalUserCount int
	LocalMaxUserCount int
	OperCount      int
	ChannelCount   int
}

// MessageTargetKind discriminates the target of a PRIVMSG/NOTICE: a
// channel, a single user, or a server/host mask.
type MessageTargetKind int

const (
	TargetChannel MessageTargetKind = iota
	TargetUser
	TargetServerMask
	TargetHostMask
)

// MessageTarget is a parsed PRIVMSG/NOTICE target. For mask targets, Mask
// holds the raw pattern; for channel/user targets, Name holds the
// channel name or nick.
type MessageTarget struct {
	Kind MessageTargetKind
	Name string
	Mask string
}

// ParseMessageTarget classifies a raw message target. Per RFC 2812, "$"
// introduces a server mask and "#" a host mask; since "#" also introduces
// channel names, a "#" target only counts as a host mask when it contains
// a wildcard ("*" or "?") and a "." (masks must match at least a full
// domain suffix).
func ParseMessageTarget(raw string) (MessageTarget, bool) {
	if raw == "" {
		return MessageTarget{}, false
	}

	if raw[0] == '$' && len(raw) > 1 {
		return MessageTarget{Kind: TargetServerMask, Mask: raw[1:]}, true
	}

	if raw[0] == '#' && strings.ContainsAny(raw, "*?") && strings.IndexByte(raw, '.') > 0 {
		return MessageTarget{Kind: TargetHostMask, Mask: raw[1:]}, true
	}

	if IsValidChannel(raw) {
		return MessageTarget{Kind: TargetChannel, Name: raw}, true
	}

	if IsValidNick(raw) {
		return MessageTarget{Kind: TargetUser, Name: raw}, true
	}

	return MessageTarget{}, false
}

// entityGraph owns the client's users/channels/servers collections.
// Exclusively mutated by the protocol engine and the CTCP sublayer;
// external readers should go through Client's read-only accessors or
// observe events.
type entityGraph struct {
	users    cmap.ConcurrentMap // lower(nick) -> *User
	channels cmap.ConcurrentMap // name -> *Channel (case-sensitive)
	servers  cmap.ConcurrentMap // host -> *Server

	mu    sync.RWMutex
	local *User
}

func newEntityGraph() *entityGraph {
	return &entityGraph{
		users:    cmap.New(),
		channels: cmap.New(),
		servers:  cmap.New(),
	}
}

func (g *entityGraph) reset(local *User) {
	g.users = cmap.New()
	g.channels = cmap.New()
	g.servers = cmap.New()
	g.mu.Lock()
	g.local = local
	g.mu.Unlock()
	if local != nil {
		g.users.Set(strings.ToLower(local.Nick), local)
	}
}

func (g *entityGraph) LocalUser() *User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.local
}

// setLocalNick renames the local user and re-keys it in the user registry.
// If the server already told us about a user under that nick (e.g. via a
// JOIN that raced ahead of the welcome numeric), that instance is adopted
// as the local user rather than shadowed.
func (g *entityGraph) setLocalNick(nick string) {
	key := strings.ToLower(nick)

	g.mu.Lock()
	local := g.local
	g.mu.Unlock()
	if local == nil {
		return
	}

	if v, ok := g.users.Get(key); ok {
		if u := v.(*User); u != local {
			g.users.Remove(strings.ToLower(local.Nick))
			g.mu.Lock()
			g.local = u
			g.mu.Unlock()
		}
		return
	}

	oldKey := strings.ToLower(local.Nick)
	local.mu.Lock()
	local.Nick = nick
	local.mu.Unlock()

	if oldKey != key {
		g.users.Remove(oldKey)
		g.users.Set(key, local)
	}
}

// GetUserByNick returns the user with the given nick, optionally creating
// it. Nick comparison is case-insensitive per RFC 2812.
func (g *entityGraph) GetUserByNick(nick string, createIfMissing bool) (u *User, created bool) {
	key := strings.ToLower(nick)
	if v, ok := g.users.Get(key); ok {
		return v.(*User), false
	}
	if !createIfMissing {
		return nil, false
	}
	u = newUser(nick)
	g.users.Set(key, u)
	return u, true
}

// LookupUser is a convenience non-creating lookup used by handlers that
// only want to update state that already exists.
func (g *entityGraph) LookupUser(nick string) (*User, bool) {
	return g.GetUserByNick(nick, false)
}

func (g *entityGraph) renameUser(from, to string) (*User, bool) {
	oldKey := strings.ToLower(from)
	v, ok := g.users.Get(oldKey)
	if !ok {
		return nil, false
	}
	u := v.(*User)
	u.mu.Lock()
	u.Nick = to
	channels := make([]*ChannelUser, 0, len(u.channels))
	for _, cu := range u.channels {
		channels = append(channels, cu)
	}
	u.mu.Unlock()

	g.users.Remove(oldKey)
	g.users.Set(strings.ToLower(to), u)

	for _, cu := range channels {
		cu.Channel.users.Remove(oldKey)
		cu.Channel.users.Set(strings.ToLower(to), cu)
	}

	return u, true
}

// deleteUser removes u from the user registry entirely. Callers must have
// already unbound it from every channel.
func (g *entityGraph) deleteUser(nick string) {
	g.users.Remove(strings.ToLower(nick))
}

// reapUser destroys u if it is no longer referenced by any channel
// membership and a QUIT has been observed for it. Call after a QUIT or
// after the last PART/KICK removing it from a channel.
func (g *entityGraph) reapUser(u *User, quitObserved bool) {
	if u == g.LocalUser() {
		return
	}
	if quitObserved && u.channelCount() == 0 {
		g.deleteUser(u.Nick)
	}
}

// GetChannel returns the channel with the given name, optionally creating
// it. Channel name comparison is case-sensitive.
func (g *entityGraph) GetChannel(name string, createIfMissing bool) (c *Channel, created bool) {
	if v, ok := g.channels.Get(name); ok {
		return v.(*Channel), false
	}
	if !createIfMissing {
		return nil, false
	}
	c = newChannel(name)
	g.channels.Set(name, c)
	return c, true
}

func (g *entityGraph) LookupChannel(name string) (*Channel, bool) {
	return g.GetChannel(name, false)
}

func (g *entityGraph) deleteChannel(name string) {
	if v, ok := g.channels.Get(name); ok {
		ch := v.(*Channel)
		for _, cu := range ch.Users() {
			cu.User.removeChannel(name)
		}
	}
	g.channels.Remove(name)
}

// GetServer returns the server with the given host, optionally creating
// it. Servers are never removed while connected.
func (g *entityGraph) GetServer(host string, createIfMissing bool) (s *Server, created bool) {
	if v, ok := g.servers.Get(host); ok {
		return v.(*Server), false
	}
	if !createIfMissing {
		return nil, false
	}
	s = &Server{HostName: host}
	g.servers.Set(host, s)
	return s, true
}

// Join binds user to channel, creating the ChannelUser link. If the pair
// is already bound, the existing link is returned unchanged (no
// duplicate, satisfying the channel.users no-duplicates invariant).
func (g *entityGraph) Join(user *User, channel *Channel) *ChannelUser {
	if cu, ok := channel.lookupUser(user.Nick); ok {
		return cu
	}
	cu := &ChannelUser{User: user, Channel: channel}
	channel.addUser(cu)
	user.addChannel(cu)
	return cu
}

// Part unbinds user (by nick) from channel. If the channel has no members
// left in the client's view (i.e. the local user parted), callers should
// follow up with deleteChannel.
func (g *entityGraph) Part(channel *Channel, nick string) {
	if cu, ok := channel.lookupUser(nick); ok {
		channel.removeUser(nick)
		cu.User.removeChannel(channel.Name)
		g.reapUser(cu.User, false)
	}
}

// Channels returns every channel currently tracked.
func (g *entityGraph) Channels() []*Channel {
	out := make([]*Channel, 0, g.channels.Count())
	for item := range g.channels.IterBuffered() {
		out = append(out, item.Val.(*Channel))
	}
	return out
}

// Users returns every user currently tracked.
func (g *entityGraph) Users() []*User {
	out := make([]*User, 0, g.users.Count())
	for item := range g.users.IterBuffered() {
		out = append(out, item.Val.(*User))
	}
	return out
}
