// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import "time"

// Named, typed events fired alongside the raw wire-command events. Every
// externally observable change gets one of these; Preview variants expose a
// Handled flag that, when set by any subscriber, suppresses the non-preview
// event that would otherwise follow.
const (
	evMessageReceived        = "MessageReceived"
	evPreviewMessageReceived = "PreviewMessageReceived"
	evNoticeReceived         = "NoticeReceived"
	evPreviewNoticeReceived  = "PreviewNoticeReceived"
	evActionReceived         = "ActionReceived"
	evVersionResponse        = "VersionResponseReceived"
	evTimeResponse           = "TimeResponseReceived"
	evPingResponse           = "PingResponseReceived"
	evErrorMessage           = "ErrorMessageReceived"
	evUserKicked             = "UserKicked"
	evUserLeft               = "UserLeft"
	evUserQuit               = "UserQuit"
	evTopicChanged           = "TopicChanged"
	evNickNameChanged        = "NickNameChanged"
	evUserInvited            = "UserInvited"
	evChannelModesChanged    = "ChannelModesChanged"
	evPingReceived           = "PingReceived"
	evPongReceived           = "PongReceived"
	evUsersListReceived      = "UsersListReceived"
	evChannelListReceived    = "ChannelListReceived"
	evLinksReceived          = "LinksReceived"
	evStatsReceived          = "StatsReceived"
	evProtocolError          = "ProtocolError"
	evServerErrorMessage     = "ServerErrorMessage"
)

// MessageReceived is fired once a channel or private PRIVMSG has updated
// the entity graph and wasn't consumed as a CTCP request.
type MessageReceived struct {
	Source *Source
	Target string
	Text   string
}

// PreviewMessageReceived fires before MessageReceived; set Handled to
// suppress it.
type PreviewMessageReceived struct {
	MessageReceived
	Handled bool
}

// NoticeReceived is the NOTICE equivalent of MessageReceived.
type NoticeReceived struct {
	Source *Source
	Target string
	Text   string
}

// PreviewNoticeReceived fires before NoticeReceived; set Handled to
// suppress it.
type PreviewNoticeReceived struct {
	NoticeReceived
	Handled bool
}

// ActionReceived is fired for an incoming CTCP ACTION ("/me").
type ActionReceived struct {
	Source *Source
	Target string
	Text   string
}

// VersionResponseReceived is fired when a CTCP VERSION reply arrives.
type VersionResponseReceived struct {
	Source  *Source
	Version string
}

// TimeResponseReceived is fired when a CTCP TIME reply arrives.
type TimeResponseReceived struct {
	Source *Source
	Text   string
}

// PingResponseReceived is fired when a CTCP PING reply arrives, with the
// round-trip duration computed from the echoed tick count.
type PingResponseReceived struct {
	Source   *Source
	Duration time.Duration
}

// ErrorMessageReceived is fired when a CTCP ERRMSG reply arrives.
type ErrorMessageReceived struct {
	Source  *Source
	Query   string
	Message string
}

// UserKicked is fired once a KICK has been applied to the entity graph.
type UserKicked struct {
	Channel string
	Kicked  string
	By      *Source
	Reason  string
}

// UserLeft is fired once a PART has been applied to the entity graph.
type UserLeft struct {
	Channel string
	User    *Source
	Reason  string
}

// UserQuit is fired once a QUIT has removed a user from every channel.
type UserQuit struct {
	User   *Source
	Reason string
}

// TopicChanged is fired once a TOPIC change has been applied.
type TopicChanged struct {
	Channel string
	Topic   string
	By      *Source
}

// NickNameChanged is fired once a NICK change has been applied.
type NickNameChanged struct {
	Old string
	New string
}

// UserInvited is fired on an incoming INVITE.
type UserInvited struct {
	Channel string
	Inviter *Source
}

// ChannelModesChanged is fired once a MODE change has been applied to a
// channel.
type ChannelModesChanged struct {
	Channel string
	Modes   string
	By      *Source
}

// PingReceived is fired when the server sends a keep-alive PING (after the
// client has already answered it with PONG).
type PingReceived struct {
	Data string
}

// PongReceived is fired when the server answers one of our PINGs.
type PongReceived struct {
	Data string
}

// UsersListReceived is fired once a NAMES run for a channel completes,
// after every listed member has been folded into the entity graph.
type UsersListReceived struct {
	Channel string
	Nicks   []string
}

// ChannelListReceived is fired once a LIST run completes.
type ChannelListReceived struct {
	Items []ChannelListItem
}

// LinksReceived is fired once a LINKS run completes.
type LinksReceived struct {
	Links []LinkItem
}

// StatsReceived is fired once a STATS run completes.
type StatsReceived struct {
	Query   string
	Entries []StatsEntry
}

// dispatchTyped fires name with payload attached via Event.Data, letting
// existing Handlers.Add(name, ...) subscribers type-assert it out.
func (c *Client) dispatchTyped(name string, payload interface{}) {
	c.RunHandlers(&Event{Command: name, Data: payload})
}

// OnMessageReceived subscribes to MessageReceived events.
func (c *Client) OnMessageReceived(fn func(*Client, MessageReceived)) string {
	return c.Handlers.Add(evMessageReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(MessageReceived); ok {
			fn(client, p)
		}
	})
}

// OnPreviewMessageReceived subscribes to PreviewMessageReceived events. The
// handler may set ev.Handled to suppress the subsequent MessageReceived.
func (c *Client) OnPreviewMessageReceived(fn func(client *Client, ev *PreviewMessageReceived)) string {
	return c.Handlers.Add(evPreviewMessageReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(*PreviewMessageReceived); ok {
			fn(client, p)
		}
	})
}

// OnNoticeReceived subscribes to NoticeReceived events.
func (c *Client) OnNoticeReceived(fn func(*Client, NoticeReceived)) string {
	return c.Handlers.Add(evNoticeReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(NoticeReceived); ok {
			fn(client, p)
		}
	})
}

// OnPreviewNoticeReceived subscribes to PreviewNoticeReceived events. The
// handler may set ev.Handled to suppress the subsequent NoticeReceived.
func (c *Client) OnPreviewNoticeReceived(fn func(client *Client, ev *PreviewNoticeReceived)) string {
	return c.Handlers.Add(evPreviewNoticeReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(*PreviewNoticeReceived); ok {
			fn(client, p)
		}
	})
}

// OnActionReceived subscribes to ActionReceived events.
func (c *Client) OnActionReceived(fn func(*Client, ActionReceived)) string {
	return c.Handlers.Add(evActionReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(ActionReceived); ok {
			fn(client, p)
		}
	})
}

// OnUserKicked subscribes to UserKicked events.
func (c *Client) OnUserKicked(fn func(*Client, UserKicked)) string {
	return c.Handlers.Add(evUserKicked, func(client *Client, e *Event) {
		if p, ok := e.Data.(UserKicked); ok {
			fn(client, p)
		}
	})
}

// OnUserLeft subscribes to UserLeft events.
func (c *Client) OnUserLeft(fn func(*Client, UserLeft)) string {
	return c.Handlers.Add(evUserLeft, func(client *Client, e *Event) {
		if p, ok := e.Data.(UserLeft); ok {
			fn(client, p)
		}
	})
}

// OnUserQuit subscribes to UserQuit events.
func (c *Client) OnUserQuit(fn func(*Client, UserQuit)) string {
	return c.Handlers.Add(evUserQuit, func(client *Client, e *Event) {
		if p, ok := e.Data.(UserQuit); ok {
			fn(client, p)
		}
	})
}

// OnTopicChanged subscribes to TopicChanged events.
func (c *Client) OnTopicChanged(fn func(*Client, TopicChanged)) string {
	return c.Handlers.Add(evTopicChanged, func(client *Client, e *Event) {
		if p, ok := e.Data.(TopicChanged); ok {
			fn(client, p)
		}
	})
}

// OnNickNameChanged subscribes to NickNameChanged events.
func (c *Client) OnNickNameChanged(fn func(*Client, NickNameChanged)) string {
	return c.Handlers.Add(evNickNameChanged, func(client *Client, e *Event) {
		if p, ok := e.Data.(NickNameChanged); ok {
			fn(client, p)
		}
	})
}

// OnUserInvited subscribes to UserInvited events.
func (c *Client) OnUserInvited(fn func(*Client, UserInvited)) string {
	return c.Handlers.Add(evUserInvited, func(client *Client, e *Event) {
		if p, ok := e.Data.(UserInvited); ok {
			fn(client, p)
		}
	})
}

// OnChannelModesChanged subscribes to ChannelModesChanged events.
func (c *Client) OnChannelModesChanged(fn func(*Client, ChannelModesChanged)) string {
	return c.Handlers.Add(evChannelModesChanged, func(client *Client, e *Event) {
		if p, ok := e.Data.(ChannelModesChanged); ok {
			fn(client, p)
		}
	})
}

// OnVersionResponseReceived subscribes to VersionResponseReceived events.
func (c *Client) OnVersionResponseReceived(fn func(*Client, VersionResponseReceived)) string {
	return c.Handlers.Add(evVersionResponse, func(client *Client, e *Event) {
		if p, ok := e.Data.(VersionResponseReceived); ok {
			fn(client, p)
		}
	})
}

// OnTimeResponseReceived subscribes to TimeResponseReceived events.
func (c *Client) OnTimeResponseReceived(fn func(*Client, TimeResponseReceived)) string {
	return c.Handlers.Add(evTimeResponse, func(client *Client, e *Event) {
		if p, ok := e.Data.(TimeResponseReceived); ok {
			fn(client, p)
		}
	})
}

// OnPingResponseReceived subscribes to PingResponseReceived events.
func (c *Client) OnPingResponseReceived(fn func(*Client, PingResponseReceived)) string {
	return c.Handlers.Add(evPingResponse, func(client *Client, e *Event) {
		if p, ok := e.Data.(PingResponseReceived); ok {
			fn(client, p)
		}
	})
}

// OnErrorMessageReceived subscribes to ErrorMessageReceived events.
func (c *Client) OnErrorMessageReceived(fn func(*Client, ErrorMessageReceived)) string {
	return c.Handlers.Add(evErrorMessage, func(client *Client, e *Event) {
		if p, ok := e.Data.(ErrorMessageReceived); ok {
			fn(client, p)
		}
	})
}

// OnPingReceived subscribes to PingReceived events.
func (c *Client) OnPingReceived(fn func(*Client, PingReceived)) string {
	return c.Handlers.Add(evPingReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(PingReceived); ok {
			fn(client, p)
		}
	})
}

// OnPongReceived subscribes to PongReceived events.
func (c *Client) OnPongReceived(fn func(*Client, PongReceived)) string {
	return c.Handlers.Add(evPongReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(PongReceived); ok {
			fn(client, p)
		}
	})
}

// OnUsersListReceived subscribes to UsersListReceived events.
func (c *Client) OnUsersListReceived(fn func(*Client, UsersListReceived)) string {
	return c.Handlers.Add(evUsersListReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(UsersListReceived); ok {
			fn(client, p)
		}
	})
}

// OnChannelListReceived subscribes to ChannelListReceived events.
func (c *Client) OnChannelListReceived(fn func(*Client, ChannelListReceived)) string {
	return c.Handlers.Add(evChannelListReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(ChannelListReceived); ok {
			fn(client, p)
		}
	})
}

// OnLinksReceived subscribes to LinksReceived events.
func (c *Client) OnLinksReceived(fn func(*Client, LinksReceived)) string {
	return c.Handlers.Add(evLinksReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(LinksReceived); ok {
			fn(client, p)
		}
	})
}

// OnStatsReceived subscribes to StatsReceived events.
func (c *Client) OnStatsReceived(fn func(*Client, StatsReceived)) string {
	return c.Handlers.Add(evStatsReceived, func(client *Client, e *Event) {
		if p, ok := e.Data.(StatsReceived); ok {
			fn(client, p)
		}
	})
}

// OnProtocolError subscribes to ProtocolError events, fired for any 4xx/5xx
// numeric the server sends. These are informational, not fatal.
func (c *Client) OnProtocolError(fn func(*Client, *ProtocolError)) string {
	return c.Handlers.Add(evProtocolError, func(client *Client, e *Event) {
		if p, ok := e.Data.(*ProtocolError); ok {
			fn(client, p)
		}
	})
}

// OnServerErrorMessage subscribes to ServerErrorMessage events, fired for
// the server's unsolicited ERROR line. A disconnect usually follows.
func (c *Client) OnServerErrorMessage(fn func(*Client, *ServerErrorMessage)) string {
	return c.Handlers.Add(evServerErrorMessage, func(client *Client, e *Event) {
		if p, ok := e.Data.(*ServerErrorMessage); ok {
			fn(client, p)
		}
	})
}
