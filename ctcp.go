// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// ctcpDelim is the delimiter used for CTCP formatted events/messages.
const ctcpDelim byte = 0x01

// CTCPEvent is the decoded form of a CTCP request or response carried
// inside a PRIVMSG/NOTICE. A NOTICE carrier marks a response (Reply).
type CTCPEvent struct {
	Source  *Source
	Command string
	Text    string
	Reply   bool
}

// decodeCTCP decodes an incoming CTCP event, applying the two-stage
// dequoting from quote.go. Returns nil if e does not carry a valid CTCP
// payload. http://www.irchelp.org/protocol/ctcpspec.html
func decodeCTCP(e *Event) *CTCPEvent {
	if len(e.Params) != 1 || len(e.Trailing) < 3 {
		return nil
	}

	if (e.Command != PRIVMSG && e.Command != NOTICE) || !IsValidNick(e.Params[0]) && !IsValidChannel(e.Params[0]) {
		return nil
	}

	raw := lowLevelDequote(e.Trailing)

	if raw[0] != ctcpDelim || raw[len(raw)-1] != ctcpDelim {
		return nil
	}

	text := ctcpDequote(raw[1 : len(raw)-1])

	s := strings.IndexByte(text, eventSpace)

	if s < 0 {
		if !isValidCTCPTag(text) {
			return nil
		}
		return &CTCPEvent{Source: e.Source, Command: text, Reply: e.Command == NOTICE}
	}

	if !isValidCTCPTag(text[:s]) {
		return nil
	}

	data := text[s+1:]
	if strings.HasPrefix(data, ":") {
		data = data[1:]
	}

	return &CTCPEvent{
		Source:  e.Source,
		Command: text[:s],
		Text:    data,
		Reply:   e.Command == NOTICE,
	}
}

func isValidCTCPTag(tag string) bool {
	if len(tag) == 0 {
		return false
	}
	for i := 0; i < len(tag); i++ {
		if (tag[i] < 0x41 || tag[i] > 0x5A) && (tag[i] < 0x30 || tag[i] > 0x39) {
			return false
		}
	}
	return true
}

// encodeCTCPRaw encodes a CTCP tag and text into a delimited, quoted
// payload suitable for Event.Trailing. The inverse of decodeCTCP: CTCP-quote
// the tagged payload, wrap it in delimiters, then low-level-quote the
// result so it can never corrupt line framing.
func encodeCTCPRaw(cmd, text string) string {
	if len(cmd) == 0 {
		return ""
	}

	out := cmd
	if len(text) > 0 {
		out += string(eventSpace) + text
	}

	wrapped := string(ctcpDelim) + ctcpQuote(out) + string(ctcpDelim)
	return lowLevelQuote(wrapped)
}

// EncodeCTCP encodes event into a quoted, delimited CTCP payload suitable
// for Event.Trailing. Returns "" for a nil event or an event with an empty
// Command.
func EncodeCTCP(event *CTCPEvent) string {
	if event == nil {
		return ""
	}
	return encodeCTCPRaw(event.Command, event.Text)
}

// DecodeCTCP decodes e's trailing parameter as a CTCP payload, returning
// nil if e does not carry a valid one. Only the one-payload form is
// handled: the trailing text must start and end with the 0x01 delimiter,
// and everything between them is read as a single tag and its data; text
// around a payload, or a second payload on the same line, is not split out.
func DecodeCTCP(e *Event) *CTCPEvent {
	return decodeCTCP(e)
}

// CTCP handles the storage and dispatch of CTCP handlers against incoming
// CTCP requests/replies.
type CTCP struct {
	disableDefault bool

	mu       sync.RWMutex
	handlers map[string]CTCPHandler
}

func newCTCP() *CTCP {
	return &CTCP{handlers: map[string]CTCPHandler{}}
}

// call executes the wildcard handler (if any) followed by the
// tag-specific handler, falling back to an ERRMSG reply if none is
// registered.
func (c *CTCP) call(client *Client, event *CTCPEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if h, ok := c.handlers["*"]; ok {
		h(client, *event)
	}

	h, ok := c.handlers[event.Command]
	if !ok {
		if !event.Reply && event.Source != nil && IsValidNick(event.Source.Name) {
			client.Cmd.SendCTCPReply(event.Source.Name, CTCP_ERRMSG, "that is an unknown CTCP query")
		}
		return
	}

	h(client, *event)
}

func (c *CTCP) parseCMD(cmd string) string {
	if cmd == "*" {
		return "*"
	}

	cmd = strings.ToUpper(cmd)
	if !isValidCTCPTag(cmd) {
		return ""
	}
	return cmd
}

// Set registers handler for cmd ("*" matches every CTCP command).
func (c *CTCP) Set(cmd string, handler func(client *Client, ctcp CTCPEvent)) {
	if cmd = c.parseCMD(cmd); cmd == "" {
		return
	}

	c.mu.Lock()
	c.handlers[cmd] = handler
	c.mu.Unlock()
}

// SetBg registers handler, executed in its own goroutine.
func (c *CTCP) SetBg(cmd string, handler func(client *Client, ctcp CTCPEvent)) {
	c.Set(cmd, func(client *Client, ctcp CTCPEvent) {
		go handler(client, ctcp)
	})
}

// Clear removes the handler registered for cmd, including a default one.
func (c *CTCP) Clear(cmd string) {
	if cmd = c.parseCMD(cmd); cmd == "" {
		return
	}

	c.mu.Lock()
	delete(c.handlers, cmd)
	c.mu.Unlock()
}

// ClearAll removes every handler and re-installs the defaults (unless
// disabled).
func (c *CTCP) ClearAll() {
	c.mu.Lock()
	c.handlers = map[string]CTCPHandler{}
	c.mu.Unlock()

	c.addDefaultHandlers()
}

// CTCPHandler implements a single CTCP command's response.
type CTCPHandler func(client *Client, ctcp CTCPEvent)

func (c *CTCP) addDefaultHandlers() {
	if c.disableDefault {
		return
	}

	c.SetBg(CTCP_PING, handleCTCPPing)
	c.SetBg(CTCP_PONG, handleCTCPPong)
	c.SetBg(CTCP_VERSION, handleCTCPVersion)
	c.SetBg(CTCP_SOURCE, handleCTCPSource)
	c.SetBg(CTCP_TIME, handleCTCPTime)
	c.SetBg(CTCP_CLIENTINFO, handleCTCPClientInfo)
	c.SetBg(CTCP_USERINFO, handleCTCPUserInfo)
	c.SetBg(CTCP_FINGER, handleCTCPFinger)
	c.SetBg(CTCP_ERRMSG, handleCTCPErrmsg)
}

func handleCTCPPing(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_PING, ctcp.Text)
}

func handleCTCPPong(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_PONG, "")
}

// handleCTCPVersion replies with the configured Config.Version. With no
// version configured the client never volunteers one.
func handleCTCPVersion(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply || client.Config.Version == "" {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_VERSION, client.Config.Version)
}

func handleCTCPSource(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	source := client.Config.Source
	if source == "" {
		source = "https://github.com/mattwho/ircore"
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_SOURCE, source)
}

// handleCTCPTime replies with an ISO-8601 formatted local time.
func handleCTCPTime(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_TIME, time.Now().Format("2006-01-02T15:04:05Z07:00"))
}

func handleCTCPClientInfo(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply || client.Config.ClientInfo == "" {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_CLIENTINFO, client.Config.ClientInfo)
}

func handleCTCPUserInfo(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply || client.Config.UserInfo == "" {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_USERINFO, client.Config.UserInfo)
}

// handleCTCPErrmsg replies to an ERRMSG query by echoing it back with
// "no error": the peer sent us a query we don't recognize any error
// condition for.
func handleCTCPErrmsg(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_ERRMSG, ctcp.Text+" :no error")
}

func handleCTCPFinger(client *Client, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	finger := client.Config.Finger
	if finger == "" {
		finger = client.GetNick()
	}
	client.Cmd.SendCTCPReply(ctcp.Source.Name, CTCP_FINGER, finger)
}

// handleCTCP decodes inbound PRIVMSG/NOTICE text; if it carries a CTCP
// payload, it's routed through CTCP.call and the typed event surface
// instead of the regular message path. dispatchMessageReceived and
// dispatchNoticeReceived skip CTCP-tagged carriers themselves, so a
// consumed CTCP never surfaces as a MessageReceived/NoticeReceived.
func handleCTCP(c *Client, e *Event) {
	ctcp := decodeCTCP(e)
	if ctcp == nil {
		return
	}

	switch ctcp.Command {
	case CTCP_ACTION:
		c.dispatchTyped(evActionReceived, ActionReceived{Source: ctcp.Source, Target: e.Params[0], Text: ctcp.Text})
		return
	case CTCP_VERSION:
		if ctcp.Reply {
			c.dispatchTyped(evVersionResponse, VersionResponseReceived{Source: ctcp.Source, Version: ctcp.Text})
			return
		}
	case CTCP_TIME:
		if ctcp.Reply {
			c.dispatchTyped(evTimeResponse, TimeResponseReceived{Source: ctcp.Source, Text: ctcp.Text})
			return
		}
	case CTCP_PING:
		if ctcp.Reply {
			if ticks, err := strconv.ParseInt(ctcp.Text, 10, 64); err == nil {
				c.dispatchTyped(evPingResponse, PingResponseReceived{
					Source:   ctcp.Source,
					Duration: time.Since(time.Unix(0, ticks)),
				})
			}
			return
		}
	case CTCP_ERRMSG:
		if ctcp.Reply {
			// Responses carry "<failed-query> :<message>".
			query, msg := ctcp.Text, ""
			if i := strings.Index(ctcp.Text, " :"); i >= 0 {
				query, msg = ctcp.Text[:i], ctcp.Text[i+2:]
			}
			c.dispatchTyped(evErrorMessage, ErrorMessageReceived{Source: ctcp.Source, Query: query, Message: msg})
			return
		}
	}

	c.CTCP.call(c, ctcp)
}
