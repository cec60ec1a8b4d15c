// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// registerBuiltins sets up built-in handlers, based on client configuration.
func (c *Client) registerBuiltins() {
	c.debug.Print("registering built-in handlers")

	c.Handlers.mu.Lock()
	defer c.Handlers.mu.Unlock()

	c.Handlers.register(true, true, RPL_WELCOME, HandlerFunc(handleConnect))
	c.Handlers.register(true, false, PING, HandlerFunc(handlePING))
	c.Handlers.register(true, false, PONG, HandlerFunc(handlePONG))
	c.Handlers.register(true, false, ERROR, HandlerFunc(handleERROR))

	c.Handlers.register(true, false, ERR_NICKNAMEINUSE, HandlerFunc(nickCollisionHandler))
	c.Handlers.register(true, false, ERR_NICKCOLLISION, HandlerFunc(nickCollisionHandler))
	c.Handlers.register(true, false, ERR_UNAVAILRESOURCE, HandlerFunc(nickCollisionHandler))
	c.Handlers.register(true, false, ERR_ERRONEUSNICKNAME, HandlerFunc(handleBadNick))

	// Protocol-failure numerics (4xx/5xx) are surfaced as one typed event
	// rather than one handler per code.
	c.Handlers.registerRangeLocked(400, 599, HandlerFunc(handleProtocolError))

	if c.Config.DisableTracking {
		return
	}

	// STATS replies arrive as a run of per-query numerics closed by 219.
	c.Handlers.registerRangeLocked(211, 218, HandlerFunc(handleSTATS))
	c.Handlers.register(true, false, RPL_ENDOFSTATS, HandlerFunc(handleSTATS))

	c.Handlers.register(true, false, JOIN, HandlerFunc(handleJOIN))
	c.Handlers.register(true, false, PART, HandlerFunc(handlePART))
	c.Handlers.register(true, false, KICK, HandlerFunc(handleKICK))
	c.Handlers.register(true, false, QUIT, HandlerFunc(handleQUIT))
	c.Handlers.register(true, false, NICK, HandlerFunc(handleNICK))
	c.Handlers.register(true, false, RPL_NAMREPLY, HandlerFunc(handleNAMES))

	c.Handlers.register(true, false, MODE, HandlerFunc(handleMODE))
	c.Handlers.register(true, false, RPL_CHANNELMODEIS, HandlerFunc(handleMODE))

	c.Handlers.register(true, false, RPL_CREATIONTIME, HandlerFunc(handleCREATIONTIME))

	c.Handlers.register(true, false, RPL_WHOREPLY, HandlerFunc(handleWHO))
	c.Handlers.register(true, false, RPL_WHOSPCRPL, HandlerFunc(handleWHO))

	c.Handlers.register(true, false, TOPIC, HandlerFunc(handleTOPIC))
	c.Handlers.register(true, false, RPL_TOPIC, HandlerFunc(handleTOPIC))
	c.Handlers.register(true, false, RPL_YOURHOST, HandlerFunc(handleYOURHOST))
	c.Handlers.register(true, false, RPL_CREATED, HandlerFunc(handleCREATED))
	c.Handlers.register(true, false, RPL_ISUPPORT, HandlerFunc(handleISUPPORT))
	c.Handlers.register(true, false, RPL_LUSERCHANNELS, HandlerFunc(handleLUSERCHANNELS))
	c.Handlers.register(true, false, RPL_GLOBALUSERS, HandlerFunc(handleGLOBALUSERS))
	c.Handlers.register(true, false, RPL_LOCALUSERS, HandlerFunc(handleLOCALUSERS))
	c.Handlers.register(true, false, RPL_LUSEROP, HandlerFunc(handleLUSEROP))
	c.Handlers.register(true, false, RPL_MOTDSTART, HandlerFunc(handleMOTD))
	c.Handlers.register(true, false, RPL_MOTD, HandlerFunc(handleMOTD))
	c.Handlers.register(true, false, RPL_ENDOFMOTD, HandlerFunc(handleMOTD))

	c.Handlers.register(true, false, RPL_AWAY, HandlerFunc(handleAWAYREPLY))
	c.Handlers.register(true, false, RPL_WHOISUSER, HandlerFunc(handleWHOISUSER))
	c.Handlers.register(true, false, RPL_WHOISSERVER, HandlerFunc(handleWHOISSERVER))
	c.Handlers.register(true, false, RPL_WHOISOPERATOR, HandlerFunc(handleWHOISOPERATOR))
	c.Handlers.register(true, false, RPL_WHOISIDLE, HandlerFunc(handleWHOISIDLE))
	c.Handlers.register(true, false, RPL_WHOWASUSER, HandlerFunc(handleWHOISUSER))

	c.Handlers.register(true, false, RPL_LISTSTART, HandlerFunc(handleLIST))
	c.Handlers.register(true, false, RPL_LIST, HandlerFunc(handleLIST))
	c.Handlers.register(true, false, RPL_LISTEND, HandlerFunc(handleLIST))

	c.Handlers.register(true, false, RPL_LINKS, HandlerFunc(handleLINKS))
	c.Handlers.register(true, false, RPL_ENDOFLINKS, HandlerFunc(handleLINKS))

	c.Handlers.register(true, false, RPL_ENDOFNAMES, HandlerFunc(handleENDOFNAMES))

	c.Handlers.register(true, false, RPL_UNAWAY, HandlerFunc(handleSELFAWAY))
	c.Handlers.register(true, false, RPL_NOWAWAY, HandlerFunc(handleSELFAWAY))
	c.Handlers.register(true, false, RPL_NOTOPIC, HandlerFunc(handleNOTOPIC))
	c.Handlers.register(true, false, RPL_USERHOST, HandlerFunc(handleUSERHOST))
	c.Handlers.register(true, false, RPL_ISON, HandlerFunc(handleISON))
	c.Handlers.register(true, false, RPL_VERSION, HandlerFunc(handleVERSIONREPLY))
	c.Handlers.register(true, false, RPL_TIME, HandlerFunc(handleTIMEREPLY))

	c.Handlers.register(true, false, PRIVMSG, HandlerFunc(updateLastActive))
	c.Handlers.register(true, false, NOTICE, HandlerFunc(updateLastActive))
	c.Handlers.register(true, false, TOPIC, HandlerFunc(updateLastActive))
	c.Handlers.register(true, false, KICK, HandlerFunc(updateLastActive))

	c.Handlers.register(true, false, PRIVMSG, HandlerFunc(handleCTCP))
	c.Handlers.register(true, false, NOTICE, HandlerFunc(handleCTCP))
	c.Handlers.register(true, false, PRIVMSG, HandlerFunc(dispatchMessageReceived))
	c.Handlers.register(true, false, NOTICE, HandlerFunc(dispatchNoticeReceived))

	c.Handlers.register(true, false, INVITE, HandlerFunc(handleINVITE))

	c.Handlers.register(true, false, CAP, HandlerFunc(handleCAP))
	c.Handlers.register(true, false, CAP_CHGHOST, HandlerFunc(handleCHGHOST))
	c.Handlers.register(true, false, CAP_AWAY, HandlerFunc(handleAWAY))
	c.Handlers.register(true, false, CAP_ACCOUNT, HandlerFunc(handleACCOUNT))
	c.Handlers.register(true, false, ALL_EVENTS, HandlerFunc(handleTags))

	c.Handlers.register(true, false, AUTHENTICATE, HandlerFunc(handleSASL))
	c.Handlers.register(true, false, RPL_SASLSUCCESS, HandlerFunc(handleSASL))
	c.Handlers.register(true, false, RPL_NICKLOCKED, HandlerFunc(handleSASLError))
	c.Handlers.register(true, false, ERR_SASLFAIL, HandlerFunc(handleSASLError))
	c.Handlers.register(true, false, ERR_SASLTOOLONG, HandlerFunc(handleSASLError))
	c.Handlers.register(true, false, ERR_SASLABORTED, HandlerFunc(handleSASLError))
}

// handleConnect marks registration complete once RPL_WELCOME arrives and
// emits the synthetic REGISTERED lifecycle event.
func handleConnect(c *Client, e *Event) {
	if len(e.Params) > 0 {
		c.state.setLocalNick(e.Params[0])
		c.state.notify(c, UPDATE_GENERAL)
	}

	if e.Source != nil && e.Source.IsServer() {
		c.state.GetServer(e.Source.Name, true)
	}

	c.engine.transition(StateRegistered)
	c.RunHandlers(&Event{Command: REGISTERED, Params: []string{c.server()}})
}

// handleERROR surfaces the server's unsolicited ERROR line; execLoop takes
// care of treating it as the connection's terminal error.
func handleERROR(c *Client, e *Event) {
	c.dispatchTyped(evServerErrorMessage, newServerErrorMessage(e.Last()))
}

// handleProtocolError surfaces 4xx/5xx numerics as a typed event. Not fatal
// on its own; subscribers decide what to do.
func handleProtocolError(c *Client, e *Event) {
	c.dispatchTyped(evProtocolError, newProtocolError(e))
}

// nickCollisionHandler retries registration under a different nick when the
// requested one is already in use.
func nickCollisionHandler(c *Client, e *Event) {
	if c.Config.HandleNickCollide == nil {
		c.Cmd.Nick(c.GetNick() + "_")
		return
	}

	if newNick := c.Config.HandleNickCollide(c.GetNick()); newNick != "" {
		c.Cmd.Nick(newNick)
	}
}

// handleBadNick gives the collision hook one chance to repair an invalid
// nickname. During registration there is no usable identity without one, so
// a missing or empty retry tears the connection down.
func handleBadNick(c *Client, e *Event) {
	if c.Config.HandleNickCollide != nil {
		if newNick := c.Config.HandleNickCollide(c.GetNick()); newNick != "" {
			c.Cmd.Nick(newNick)
			return
		}
	}

	if c.State() == StateRegistering {
		c.Close()
	}
}

func handlePING(c *Client, e *Event) {
	c.Cmd.Pong(e.Last())
	c.dispatchTyped(evPingReceived, PingReceived{Data: e.Last()})
}

func handlePONG(c *Client, e *Event) {
	c.mu.RLock()
	if c.conn != nil {
		c.conn.markPong()
	}
	c.mu.RUnlock()

	c.dispatchTyped(evPongReceived, PongReceived{Data: e.Last()})
}

// handleJOIN binds the joining user to the channel in the entity graph and,
// for our own join, kicks off WHO/MODE so the full member list and channel
// modes populate. JOIN parameters may name several channels at once,
// comma-separated.
func handleJOIN(c *Client, e *Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}

	self := strings.EqualFold(e.Source.Name, c.GetNick())

	for _, channelName := range strings.Split(e.Params[0], ",") {
		if !IsValidChannel(channelName) {
			continue
		}

		c.state.Lock()
		channel, _ := c.state.GetChannel(channelName, true)
		user, _ := c.state.GetUserByNick(e.Source.Name, true)
		user.Ident = e.Source.Ident
		user.Host = e.Source.Host
		c.state.Join(user, channel)
		c.state.Unlock()

		// Extended-join carries the account name as a second parameter and
		// the realname as trailing text.
		if len(e.Params) >= 2 && e.Params[1] != "*" {
			user.Account = e.Params[1]
		}
		if len(e.Params) >= 2 && e.Trailing != "" {
			user.RealName = e.Trailing
		}

		if self {
			c.state.ident.Store(e.Source.Ident)
			c.state.host.Store(e.Source.Host)

			_ = c.Send(&Event{Command: WHO, Params: []string{channelName, "%tacuhnr,1"}})
			_ = c.Send(&Event{Command: MODE, Params: []string{channelName}})
		}
	}

	c.state.notify(c, UPDATE_STATE)

	if !self {
		_ = c.Send(&Event{Command: WHO, Params: []string{e.Source.Name, "%tacuhnr,1"}})
	}
}

// handlePART unbinds the leaving user from the channel, removing the
// channel entirely if it was us, per the entity graph's lifecycle rules.
func handlePART(c *Client, e *Event) {
	if e.Source == nil || len(e.Params) < 1 || e.Params[0] == "" {
		return
	}

	self := strings.EqualFold(e.Source.Name, c.GetNick())

	for _, channelName := range strings.Split(e.Params[0], ",") {
		if channelName == "" {
			continue
		}

		c.state.Lock()
		if self {
			c.state.deleteChannel(channelName)
		} else if channel, ok := c.state.LookupChannel(channelName); ok {
			c.state.Part(channel, e.Source.Name)
		}
		c.state.Unlock()

		c.dispatchTyped(evUserLeft, UserLeft{Channel: channelName, User: e.Source, Reason: e.Last()})
	}

	c.state.notify(c, UPDATE_STATE)
}

// handleCREATIONTIME records RPL_CREATIONTIME's channel-creation unix
// timestamp as the channel's Joined-equivalent metadata.
func handleCREATIONTIME(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}

	channel, ok := c.state.LookupChannel(e.Params[1])
	if !ok {
		return
	}

	if ts, err := strconv.ParseInt(e.Params[2], 10, 64); err == nil {
		channel.Joined = time.Unix(ts, 0)
	}
	c.state.notify(c, UPDATE_STATE)
}

// handleTOPIC keeps the channel's tracked Topic current.
func handleTOPIC(c *Client, e *Event) {
	var name string
	switch len(e.Params) {
	case 0:
		return
	case 1:
		name = e.Params[0]
	default:
		name = e.Params[1]
	}

	channel, ok := c.state.LookupChannel(name)
	if !ok {
		return
	}

	channel.Topic = e.Last()
	c.state.notify(c, UPDATE_STATE)

	c.dispatchTyped(evTopicChanged, TopicChanged{Channel: name, Topic: e.Last(), By: e.Source})
}

// handleWHO updates user idents/hosts/realnames from WHO and WHOX replies.
func handleWHO(c *Client, e *Event) {
	var ident, host, nick, account, realname string

	if e.Command == RPL_WHOSPCRPL {
		if len(e.Params) != 7 || e.Params[1] != "1" {
			return
		}
		ident, host, nick, account = e.Params[3], e.Params[4], e.Params[5], e.Params[6]
		realname = e.Last()
	} else {
		if len(e.Params) < 6 {
			return
		}
		ident, host, nick, realname = e.Params[2], e.Params[3], e.Params[5], e.Last()

		for i := 0; i < len(realname); i++ {
			if realname[i] < '0' || realname[i] > '9' {
				realname = strings.TrimLeft(realname[i:], " ")
				break
			}
			if i == len(realname)-1 {
				realname = ""
			}
		}
	}

	if nick == "" {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(nick, true)
	user.Ident = ident
	user.Host = host
	user.RealName = realname
	if account != "" && account != "0" {
		user.Account = account
	}
	c.state.Unlock()

	if strings.EqualFold(nick, c.GetNick()) {
		c.state.ident.Store(ident)
		c.state.host.Store(host)
	}

	c.state.notify(c, UPDATE_STATE)
}

// handleKICK removes the kicked user from the channel (or the channel
// entirely, if it was us).
func handleKICK(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	// KICK allows comma-separated channel and target lists; the common case
	// is a single pair, but walk both lists to stay correct for the rest.
	channels := strings.Split(e.Params[0], ",")
	targets := strings.Split(e.Params[1], ",")

	for _, channelName := range channels {
		for _, target := range targets {
			c.state.Lock()
			if strings.EqualFold(target, c.GetNick()) {
				c.state.deleteChannel(channelName)
			} else if channel, ok := c.state.LookupChannel(channelName); ok {
				c.state.Part(channel, target)
			}
			c.state.Unlock()

			c.dispatchTyped(evUserKicked, UserKicked{Channel: channelName, Kicked: target, By: e.Source, Reason: e.Last()})
		}
	}

	c.state.notify(c, UPDATE_STATE)
}

// handleNICK renames the user in the entity graph, or updates our own
// tracked nick.
func handleNICK(c *Client, e *Event) {
	if e.Source == nil || len(e.Params) < 1 {
		return
	}

	c.state.Lock()
	c.state.renameUser(e.Source.Name, e.Last())
	if strings.EqualFold(e.Source.Name, c.GetNick()) {
		c.state.setLocalNick(e.Last())
	}
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)

	c.dispatchTyped(evNickNameChanged, NickNameChanged{Old: e.Source.Name, New: e.Last()})
}

// handleQUIT removes the quitting user from the entity graph entirely.
func handleQUIT(c *Client, e *Event) {
	if e.Source == nil || strings.EqualFold(e.Source.Name, c.GetNick()) {
		return
	}

	var left []string

	c.state.Lock()
	if u, ok := c.state.LookupUser(e.Source.Name); ok {
		for _, cu := range u.Channels() {
			left = append(left, cu.Channel.Name)
			c.state.Part(cu.Channel, u.Nick)
		}
		u.IsOnline = false
		c.state.reapUser(u, true)
	}
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)

	for _, name := range left {
		c.dispatchTyped(evUserLeft, UserLeft{Channel: name, User: e.Source, Reason: e.Last()})
	}
	c.dispatchTyped(evUserQuit, UserQuit{User: e.Source, Reason: e.Last()})
}

// handleINVITE surfaces an incoming channel invite as a typed event; the
// entity graph has nothing to update until the invite is accepted with JOIN.
func handleINVITE(c *Client, e *Event) {
	channel := e.Last()
	if channel == "" && len(e.Params) > 1 {
		channel = e.Params[1]
	}
	if channel == "" {
		return
	}

	c.dispatchTyped(evUserInvited, UserInvited{Channel: channel, Inviter: e.Source})
}

func handleGLOBALUSERS(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}
	server, _ := c.state.GetServer(c.server(), true)
	if n, err := strconv.Atoi(e.Params[1]); err == nil {
		server.UserCount = n
	}
	if n, err := strconv.Atoi(e.Params[2]); err == nil {
		server.MaxUserCount = n
	}
}

func handleLOCALUSERS(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}
	server, _ := c.state.GetServer(c.server(), true)
	if n, err := strconv.Atoi(e.Params[1]); err == nil {
		server.LocalUserCount = n
	}
	if n, err := strconv.Atoi(e.Params[2]); err == nil {
		server.LocalMaxUserCount = n
	}
}

func handleLUSERCHANNELS(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}
	if n, err := strconv.Atoi(e.Params[1]); err == nil {
		server, _ := c.state.GetServer(c.server(), true)
		server.ChannelCount = n
	}
}

func handleLUSEROP(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}
	if n, err := strconv.Atoi(e.Params[1]); err == nil {
		server, _ := c.state.GetServer(c.server(), true)
		server.OperCount = n
	}
}

// handleCREATED parses the free-text RPL_CREATED line for the server's
// compile date, using dateparse to tolerate the many formats daemons emit.
func handleCREATED(c *Client, e *Event) {
	if e.Last() == "" {
		return
	}

	split := strings.Split(e.Last(), " ")
	days := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	found := -1
	for i, word := range split {
		for _, day := range days {
			if word == day+"," {
				found = i
				break
			}
		}
	}
	if found == -1 {
		return
	}

	compiled, err := dateparse.ParseAny(strings.Join(split[found:], " "))
	if err != nil {
		return
	}

	server, _ := c.state.GetServer(c.server(), true)
	server.Compiled = compiled
	c.state.notify(c, UPDATE_GENERAL)
}

// handleYOURHOST parses the free-text RPL_YOURHOST line for the daemon name
// and version.
func handleYOURHOST(c *Client, e *Event) {
	if e.Last() == "" {
		return
	}

	const prefix = "Your host is "
	const suffix = " running version "

	var host, ver string
	if strings.Contains(e.Last(), prefix) && strings.Contains(e.Last(), ",") {
		s := strings.TrimPrefix(e.Last(), prefix)
		split := strings.SplitN(s, ",", 2)
		host = split[0]
		if len(split) > 1 {
			ver = strings.Replace(split[1], suffix, "", 1)
		}
	}
	if host == "" && ver == "" {
		return
	}

	server, _ := c.state.GetServer(c.server(), true)
	server.HostName = host
	server.Version = strings.TrimSpace(ver)
	c.state.notify(c, UPDATE_GENERAL)
}

// handleISUPPORT records every ISUPPORT (005) token into serverOptions.
// 005 may arrive several times; tokens accumulate across all of them.
func handleISUPPORT(c *Client, e *Event) {
	if !strings.HasSuffix(e.Last(), "this server") {
		return
	}
	if len(e.Params) < 2 {
		return
	}

	for i := 1; i < len(e.Params); i++ {
		split := strings.SplitN(e.Params[i], "=", 2)

		if len(split) != 2 || len(split[0]) < 1 {
			c.state.serverOptions.Set(e.Params[i], "")
			continue
		}

		if split[0] == "NETWORK" {
			c.state.network.Store(split[1])
			server, _ := c.state.GetServer(c.server(), true)
			server.Network = split[1]
		}

		c.state.serverOptions.Set(split[0], split[1])
	}

	c.state.notify(c, UPDATE_GENERAL)
}

// handleMOTD buffers incoming MOTD lines for Client.ServerMOTD, bracketed
// by the start (375) and end (376) numerics.
func handleMOTD(c *Client, e *Event) {
	defer c.state.notify(c, UPDATE_GENERAL)

	c.state.Lock()
	defer c.state.Unlock()

	switch e.Command {
	case RPL_MOTDSTART:
		c.state.motd.Reset()
	case RPL_ENDOFMOTD:
	default:
		if c.state.motd.Len() != 0 {
			c.state.motd.WriteByte('\n')
		}
		c.state.motd.WriteString(e.Last())
	}
}

// handleNAMES populates channel membership (and, where userhost-in-names or
// multi-prefix are enabled, idents/hosts/permissions) from RPL_NAMREPLY.
func handleNAMES(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}

	channel, _ := c.state.GetChannel(e.Params[2], true)

	switch e.Params[1] {
	case "=":
		channel.Type = ChannelPublic
	case "*":
		channel.Type = ChannelPrivate
	case "@":
		channel.Type = ChannelSecret
	}

	parts := strings.Split(e.Last(), " ")

	for i := 0; i < len(parts); i++ {
		modes, nick, ok := parseUserPrefix(parts[i])
		if !ok {
			continue
		}

		var src *Source
		if strings.Contains(nick, "@") {
			src = ParseSource(nick)
		} else {
			if !IsValidNick(nick) {
				continue
			}
			src = &Source{Name: nick}
		}

		c.state.Lock()
		user, _ := c.state.GetUserByNick(src.Name, true)
		if src.Ident != "" {
			user.Ident = src.Ident
		}
		if src.Host != "" {
			user.Host = src.Host
		}
		cu := c.state.Join(user, channel)
		cu.setFromPrefix(modes, true)
		c.state.Unlock()
	}

	c.state.notify(c, UPDATE_STATE)
}

// updateLastActive touches the sending user's last-seen timestamp.
func updateLastActive(c *Client, e *Event) {
	if e.Source == nil {
		return
	}
	if user, ok := c.state.LookupUser(e.Source.Name); ok {
		user.mu.Lock()
		user.seen = time.Now()
		user.mu.Unlock()
	}
}

// dispatchMessageReceived fires PreviewMessageReceived then, unless a
// subscriber marked it handled, MessageReceived. CTCP-tagged PRIVMSGs are
// not regular messages and are left entirely to handleCTCP.
func dispatchMessageReceived(c *Client, e *Event) {
	if len(e.Params) == 0 || decodeCTCP(e) != nil {
		return
	}

	payload := MessageReceived{Source: e.Source, Target: e.Params[0], Text: e.Trailing}

	preview := &PreviewMessageReceived{MessageReceived: payload}
	c.RunHandlers(&Event{Command: evPreviewMessageReceived, Data: preview})
	if preview.Handled {
		return
	}

	c.dispatchTyped(evMessageReceived, payload)
}

// handleAWAYREPLY records another user's away text from RPL_AWAY (301),
// sent in response to WHOIS or messaging an away user.
func handleAWAYREPLY(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(e.Params[1], true)
	user.IsAway = true
	user.AwayMessage = e.Last()
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)
}

// handleWHOISUSER updates ident/host/realname from RPL_WHOISUSER (311) and
// RPL_WHOWASUSER (314). WHOWAS subjects are no longer online.
func handleWHOISUSER(c *Client, e *Event) {
	if len(e.Params) < 4 {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(e.Params[1], true)
	user.Ident = e.Params[2]
	user.Host = e.Params[3]
	user.RealName = e.Last()
	if e.Command == RPL_WHOWASUSER {
		user.IsOnline = false
	}
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)
}

// handleWHOISSERVER records which server the subject is attached to (312).
func handleWHOISSERVER(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(e.Params[1], true)
	user.ServerName = e.Params[2]
	c.state.Unlock()

	c.state.GetServer(e.Params[2], true)
	c.state.notify(c, UPDATE_STATE)
}

func handleWHOISOPERATOR(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(e.Params[1], true)
	user.IsOperator = true
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)
}

// handleWHOISIDLE records the subject's idle seconds and, where supplied,
// signon time (317).
func handleWHOISIDLE(c *Client, e *Event) {
	if len(e.Params) < 3 {
		return
	}

	c.state.Lock()
	user, _ := c.state.GetUserByNick(e.Params[1], true)
	if secs, err := strconv.ParseInt(e.Params[2], 10, 64); err == nil {
		user.Idle = time.Duration(secs) * time.Second
	}
	if len(e.Params) > 3 {
		if signon, err := strconv.ParseInt(e.Params[3], 10, 64); err == nil {
			user.LoginTime = time.Unix(signon, 0)
		}
	}
	c.state.Unlock()

	c.state.notify(c, UPDATE_STATE)
}

// handleLIST accumulates the RPL_LISTSTART/RPL_LIST run and dispatches the
// collected channel list on RPL_LISTEND.
func handleLIST(c *Client, e *Event) {
	switch e.Command {
	case RPL_LISTSTART:
		c.state.Lock()
		c.state.channelList = nil
		c.state.Unlock()
	case RPL_LIST:
		if len(e.Params) < 3 {
			return
		}
		item := ChannelListItem{Name: e.Params[1], Topic: e.Last()}
		item.UserCount, _ = strconv.Atoi(e.Params[2])

		c.state.Lock()
		c.state.channelList = append(c.state.channelList, item)
		c.state.Unlock()
	case RPL_LISTEND:
		c.state.Lock()
		items := c.state.channelList
		c.state.channelList = nil
		c.state.Unlock()

		c.dispatchTyped(evChannelListReceived, ChannelListReceived{Items: items})
	}
}

// handleLINKS accumulates RPL_LINKS entries and dispatches them on
// RPL_ENDOFLINKS.
func handleLINKS(c *Client, e *Event) {
	if e.Command == RPL_LINKS {
		if len(e.Params) < 3 {
			return
		}
		link := LinkItem{Mask: e.Params[1], Server: e.Params[2], Info: e.Last()}

		c.state.Lock()
		c.state.links = append(c.state.links, link)
		c.state.Unlock()

		c.state.GetServer(link.Server, true)
		return
	}

	c.state.Lock()
	links := c.state.links
	c.state.links = nil
	c.state.Unlock()

	c.dispatchTyped(evLinksReceived, LinksReceived{Links: links})
}

// handleSTATS accumulates the per-query stats numerics (211-218) and
// dispatches them once RPL_ENDOFSTATS (219) closes the run.
func handleSTATS(c *Client, e *Event) {
	if e.Command != RPL_ENDOFSTATS {
		c.state.Lock()
		c.state.stats = append(c.state.stats, StatsEntry{Numeric: e.Command, Params: e.Params, Text: e.Trailing})
		c.state.Unlock()
		return
	}

	var query string
	if len(e.Params) > 1 {
		query = e.Params[1]
	}

	c.state.Lock()
	entries := c.state.stats
	c.state.stats = nil
	c.state.Unlock()

	c.dispatchTyped(evStatsReceived, StatsReceived{Query: query, Entries: entries})
}

// handleSELFAWAY tracks our own away status from the 305/306 confirmation
// numerics.
func handleSELFAWAY(c *Client, e *Event) {
	if local := c.state.LocalUser(); local != nil {
		local.mu.Lock()
		local.IsAway = e.Command == RPL_NOWAWAY
		if !local.IsAway {
			local.AwayMessage = ""
		}
		local.mu.Unlock()
	}
	c.state.notify(c, UPDATE_STATE)
}

// handleNOTOPIC clears the tracked topic for a channel (331).
func handleNOTOPIC(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	if channel, ok := c.state.LookupChannel(e.Params[1]); ok {
		channel.Topic = ""
		c.state.notify(c, UPDATE_STATE)
	}
}

// handleUSERHOST folds RPL_USERHOST (302) "nick=+user@host" entries back
// into tracked users.
func handleUSERHOST(c *Client, e *Event) {
	for _, entry := range strings.Fields(e.Last()) {
		eq := strings.IndexByte(entry, '=')
		if eq < 1 {
			continue
		}

		// An oper is flagged with a "*" between the nick and the "=".
		nick := strings.TrimSuffix(entry[:eq], "*")
		rest := strings.TrimLeft(entry[eq+1:], "+-")

		at := strings.IndexByte(rest, '@')
		if at < 1 {
			continue
		}

		c.state.Lock()
		user, _ := c.state.GetUserByNick(nick, true)
		user.Ident = rest[:at]
		user.Host = rest[at+1:]
		c.state.Unlock()
	}

	c.state.notify(c, UPDATE_STATE)
}

// handleISON marks the listed nicks online (303); tracked users missing
// from the reply the client asked about stay as they were, since the
// request parameters aren't echoed back.
func handleISON(c *Client, e *Event) {
	for _, nick := range strings.Fields(e.Last()) {
		if user, ok := c.state.LookupUser(nick); ok {
			user.IsOnline = true
		}
	}
}

// handleVERSIONREPLY records the server software version from RPL_VERSION
// (351).
func handleVERSIONREPLY(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	host := c.server()
	if len(e.Params) > 2 {
		host = e.Params[2]
	}

	server, _ := c.state.GetServer(host, true)
	server.Version = e.Params[1]
	c.state.notify(c, UPDATE_GENERAL)
}

// handleTIMEREPLY records the server-reported local time string from
// RPL_TIME (391).
func handleTIMEREPLY(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	c.state.GetServer(e.Params[1], true)
	c.state.notify(c, UPDATE_GENERAL)
}

// handleENDOFNAMES fires once a NAMES run for a channel has completed and
// every member from it has been folded into the entity graph.
func handleENDOFNAMES(c *Client, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	channel, ok := c.state.LookupChannel(e.Params[1])
	if !ok {
		return
	}

	nicks := make([]string, 0, channel.Len())
	for _, cu := range channel.Users() {
		nicks = append(nicks, cu.User.Nick)
	}
	sort.Strings(nicks)

	c.dispatchTyped(evUsersListReceived, UsersListReceived{Channel: channel.Name, Nicks: nicks})
}

// dispatchNoticeReceived is the NOTICE equivalent of dispatchMessageReceived.
func dispatchNoticeReceived(c *Client, e *Event) {
	if len(e.Params) == 0 || decodeCTCP(e) != nil {
		return
	}

	payload := NoticeReceived{Source: e.Source, Target: e.Params[0], Text: e.Trailing}

	preview := &PreviewNoticeReceived{NoticeReceived: payload}
	c.RunHandlers(&Event{Command: evPreviewNoticeReceived, Data: preview})
	if preview.Handled {
		return
	}

	c.dispatchTyped(evNoticeReceived, payload)
}
