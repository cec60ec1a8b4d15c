// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Commands holds a large list of useful methods to interact with the server,
// and wrappers for common events. Methods that take a nick or channel
// target validate it synchronously and return an *ErrInvalidTarget before
// anything reaches the send scheduler; the rest (Ping, Pong, Oper, Back,
// Motd and the other query builders) pass their arguments through
// unchecked.
type Commands struct {
	c *Client
}

// Nick changes the client nickname.
func (cmd *Commands) Nick(name string) error {
	if !IsValidNick(name) {
		return &ErrInvalidTarget{Target: name}
	}

	return cmd.c.Send(&Event{Command: NICK, Params: []string{name}})
}

// Join attempts to enter a list of IRC channels in bulk, batching as many
// as fit on one line to avoid excessive JOIN commands.
func (cmd *Commands) Join(channels ...string) error {
	max := maxLength - len(JOIN) - 1

	var buffer string

	for i := 0; i < len(channels); i++ {
		if !IsValidChannel(channels[i]) {
			return &ErrInvalidTarget{Target: channels[i]}
		}

		if len(buffer+","+channels[i]) > max {
			if err := cmd.c.Send(&Event{Command: JOIN, Params: []string{buffer}}); err != nil {
				return err
			}
			buffer = ""
		}

		if len(buffer) == 0 {
			buffer = channels[i]
		} else {
			buffer += "," + channels[i]
		}

		if i == len(channels)-1 {
			return cmd.c.Send(&Event{Command: JOIN, Params: []string{buffer}})
		}
	}

	return nil
}

// JoinKey attempts to enter an IRC channel with a password.
func (cmd *Commands) JoinKey(channel, password string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}

	return cmd.c.Send(&Event{Command: JOIN, Params: []string{channel, password}})
}

// Part leaves an IRC channel.
func (cmd *Commands) Part(channel string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}

	return cmd.c.Send(&Event{Command: PART, Params: []string{channel}})
}

// PartMessage leaves an IRC channel with a specified leave message.
func (cmd *Commands) PartMessage(channel, message string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}

	return cmd.c.Send(&Event{Command: PART, Params: []string{channel}, Trailing: message})
}

// SendCTCP sends a CTCP request to target using PRIVMSG.
func (cmd *Commands) SendCTCP(target, ctcpType, message string) error {
	out := encodeCTCPRaw(ctcpType, message)
	if out == "" {
		return errors.New("invalid CTCP")
	}

	return cmd.Message(target, out)
}

// SendCTCPf sends a formatted CTCP request to target using PRIVMSG.
func (cmd *Commands) SendCTCPf(target, ctcpType, format string, a ...interface{}) error {
	return cmd.SendCTCP(target, ctcpType, fmt.Sprintf(format, a...))
}

// SendCTCPReplyf sends a formatted CTCP response to target using NOTICE.
func (cmd *Commands) SendCTCPReplyf(target, ctcpType, format string, a ...interface{}) error {
	return cmd.SendCTCPReply(target, ctcpType, fmt.Sprintf(format, a...))
}

// SendCTCPReply sends a CTCP response to target using NOTICE.
func (cmd *Commands) SendCTCPReply(target, ctcpType, message string) error {
	out := encodeCTCPRaw(ctcpType, message)
	if out == "" {
		return errors.New("invalid CTCP")
	}

	return cmd.Notice(target, out)
}

// Message sends a PRIVMSG to target (channel, service, or user).
func (cmd *Commands) Message(target, message string) error {
	if !IsValidNick(target) && !IsValidChannel(target) {
		return &ErrInvalidTarget{Target: target}
	}

	return cmd.c.Send(&Event{Command: PRIVMSG, Params: []string{target}, Trailing: message})
}

// MessageAll sends a single PRIVMSG addressed to several targets at once.
func (cmd *Commands) MessageAll(targets []string, message string) error {
	joined, err := joinTargets(targets)
	if err != nil {
		return err
	}

	return cmd.c.Send(&Event{Command: PRIVMSG, Params: []string{joined}, Trailing: message})
}

// NoticeAll sends a single NOTICE addressed to several targets at once.
func (cmd *Commands) NoticeAll(targets []string, message string) error {
	joined, err := joinTargets(targets)
	if err != nil {
		return err
	}

	return cmd.c.Send(&Event{Command: NOTICE, Params: []string{joined}, Trailing: message})
}

func joinTargets(targets []string) (string, error) {
	if len(targets) == 0 {
		return "", &ErrInvalidTarget{Target: ""}
	}
	for _, target := range targets {
		if !IsValidNick(target) && !IsValidChannel(target) {
			return "", &ErrInvalidTarget{Target: target}
		}
	}
	return strings.Join(targets, ","), nil
}

// Messagef sends a formatted PRIVMSG to target.
func (cmd *Commands) Messagef(target, format string, a ...interface{}) error {
	return cmd.Message(target, fmt.Sprintf(format, a...))
}

// Action sends a PRIVMSG ACTION (/me) to target.
func (cmd *Commands) Action(target, message string) error {
	if !IsValidNick(target) && !IsValidChannel(target) {
		return &ErrInvalidTarget{Target: target}
	}

	return cmd.c.Send(&Event{
		Command:  PRIVMSG,
		Params:   []string{target},
		Trailing: fmt.Sprintf("\001ACTION %s\001", message),
	})
}

// Actionf sends a formatted PRIVMSG ACTION (/me) to target.
func (cmd *Commands) Actionf(target, format string, a ...interface{}) error {
	return cmd.Action(target, fmt.Sprintf(format, a...))
}

// Notice sends a NOTICE to target (channel, service, or user).
func (cmd *Commands) Notice(target, message string) error {
	if !IsValidNick(target) && !IsValidChannel(target) {
		return &ErrInvalidTarget{Target: target}
	}

	return cmd.c.Send(&Event{Command: NOTICE, Params: []string{target}, Trailing: message})
}

// Noticef sends a formatted NOTICE to target.
func (cmd *Commands) Noticef(target, format string, a ...interface{}) error {
	return cmd.Notice(target, fmt.Sprintf(format, a...))
}

// SendRaw sends a raw line to the server, parsed and validated exactly as
// an incoming line would be.
func (cmd *Commands) SendRaw(raw string) error {
	e := ParseEvent(raw)
	if e == nil {
		return errors.New("invalid event: " + raw)
	}

	return cmd.c.Send(e)
}

// SendRawf sends a formatted raw line to the server.
func (cmd *Commands) SendRawf(format string, a ...interface{}) error {
	return cmd.SendRaw(fmt.Sprintf(format, a...))
}

// Topic sets the topic of channel to message.
func (cmd *Commands) Topic(channel, message string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}

	return cmd.c.Send(&Event{Command: TOPIC, Params: []string{channel}, Trailing: message})
}

// Who sends a WHO query to the server, requesting WHOX fields via "%tcuhnr,2".
// Don't use "1" as the query type, as that's reserved for internal tracking.
func (cmd *Commands) Who(target string) error {
	if !IsValidNick(target) && !IsValidChannel(target) && !IsValidUser(target) {
		return &ErrInvalidTarget{Target: target}
	}

	return cmd.c.Send(&Event{Command: WHO, Params: []string{target, "%tcuhnr,2"}})
}

// Whois sends a WHOIS query to the server, targeted at a specific user.
func (cmd *Commands) Whois(nick string) error {
	if !IsValidNick(nick) {
		return &ErrInvalidTarget{Target: nick}
	}

	return cmd.c.Send(&Event{Command: WHOIS, Params: []string{nick}})
}

// Ping sends a PING query to the server with an identifier the server
// should echo back.
func (cmd *Commands) Ping(id string) error {
	return cmd.c.Send(&Event{Command: PING, Params: []string{id}})
}

// Pong replies to a previously received PING with the same identifier.
func (cmd *Commands) Pong(id string) error {
	return cmd.c.Send(&Event{Command: PONG, Params: []string{id}})
}

// Oper authenticates as an IRC operator.
func (cmd *Commands) Oper(user, pass string) error {
	return cmd.c.Send(&Event{Command: OPER, Params: []string{user, pass}, Sensitive: true})
}

// Kick kicks nick from channel, with an optional reason.
func (cmd *Commands) Kick(channel, nick, reason string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}
	if !IsValidNick(nick) {
		return &ErrInvalidTarget{Target: nick}
	}

	if reason != "" {
		return cmd.c.Send(&Event{Command: KICK, Params: []string{channel, nick}, Trailing: reason})
	}

	return cmd.c.Send(&Event{Command: KICK, Params: []string{channel, nick}})
}

// Invite invites nick to channel.
func (cmd *Commands) Invite(channel, nick string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}
	if !IsValidNick(nick) {
		return &ErrInvalidTarget{Target: nick}
	}

	return cmd.c.Send(&Event{Command: INVITE, Params: []string{nick, channel}})
}

// Away marks the client away with reason, or back if reason is empty.
func (cmd *Commands) Away(reason string) error {
	if reason == "" {
		return cmd.Back()
	}

	return cmd.c.Send(&Event{Command: AWAY, Trailing: reason})
}

// Back clears the away status set by Away.
func (cmd *Commands) Back() error {
	return cmd.c.Send(&Event{Command: AWAY})
}

// List requests channels and topics from the server. Supply no channels to
// list the entire network.
func (cmd *Commands) List(channels ...string) error {
	if len(channels) == 0 {
		return cmd.c.Send(&Event{Command: LIST})
	}

	max := maxLength - len(LIST) - 1

	var buffer string

	for i := 0; i < len(channels); i++ {
		if !IsValidChannel(channels[i]) {
			return &ErrInvalidTarget{Target: channels[i]}
		}

		if len(buffer+","+channels[i]) > max {
			if err := cmd.c.Send(&Event{Command: LIST, Params: []string{buffer}}); err != nil {
				return err
			}
			buffer = ""
		}

		if len(buffer) == 0 {
			buffer = channels[i]
		} else {
			buffer += "," + channels[i]
		}

		if i == len(channels)-1 {
			return cmd.c.Send(&Event{Command: LIST, Params: []string{buffer}})
		}
	}

	return nil
}

// Whowas sends a WHOWAS query to the server, requesting amount results.
func (cmd *Commands) Whowas(nick string, amount int) error {
	if !IsValidNick(nick) {
		return &ErrInvalidTarget{Target: nick}
	}

	return cmd.c.Send(&Event{Command: WHOWAS, Params: []string{nick, strconv.Itoa(amount)}})
}

// SetUserModes changes the client's own user modes, e.g. "+iw" or "-i".
func (cmd *Commands) SetUserModes(modes string) error {
	nick := cmd.c.GetNick()
	if !IsValidNick(nick) {
		return &ErrInvalidTarget{Target: nick}
	}

	return cmd.c.Send(&Event{Command: MODE, Params: []string{nick, modes}})
}

// SetChannelModes changes modes on channel, with any follow-up parameters
// the mode letters consume (keys, limits, nicks).
func (cmd *Commands) SetChannelModes(channel, modes string, params ...string) error {
	if !IsValidChannel(channel) {
		return &ErrInvalidTarget{Target: channel}
	}

	return cmd.c.Send(&Event{Command: MODE, Params: append([]string{channel, modes}, params...)})
}

// Motd requests the message of the day, optionally from a specific server.
func (cmd *Commands) Motd(target ...string) error {
	return cmd.c.Send(&Event{Command: MOTD, Params: target})
}

// Lusers requests network statistics, with an optional mask and target
// server.
func (cmd *Commands) Lusers(args ...string) error {
	return cmd.c.Send(&Event{Command: LUSERS, Params: args})
}

// Stats issues a STATS query (e.g. "l", "u"), optionally to a specific
// server.
func (cmd *Commands) Stats(args ...string) error {
	return cmd.c.Send(&Event{Command: STATS, Params: args})
}

// Links requests the list of servers known to the network, optionally
// filtered by mask.
func (cmd *Commands) Links(args ...string) error {
	return cmd.c.Send(&Event{Command: LINKS, Params: args})
}

// Time requests the local time of the server, or of target if supplied.
func (cmd *Commands) Time(target ...string) error {
	return cmd.c.Send(&Event{Command: TIME, Params: target})
}

// ServerVersion requests the version of the server, or of target if
// supplied.
func (cmd *Commands) ServerVersion(target ...string) error {
	return cmd.c.Send(&Event{Command: VERSION, Params: target})
}
