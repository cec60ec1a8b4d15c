// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattwho/ircore/internal/ctxgroup"
)

// Messages are delimited with CR and LF line endings, we're using the last
// one to split the stream. Both are removed during parsing of the message.
const delim byte = '\n'

var endline = []byte("\r\n")

// ircConn represents an IRC network protocol connection, it consists of an
// Encoder and Decoder to manage i/o.
type ircConn struct {
	io   *bufio.ReadWriter
	sock net.Conn

	mu sync.RWMutex
	// lastWrite is used to keep track of when we last wrote to the server.
	lastWrite time.Time
	// lastActive is the last time the client was interacting with the server,
	// excluding a few background commands (PING, PONG, WHO, etc).
	lastActive time.Time
	// writeDelay is used to keep track of rate limiting of events sent to
	// the server.
	writeDelay time.Duration
	// connected is true if we're actively connected to a server.
	connected bool
	// connTime is the time at which the client has connected to a server.
	connTime *time.Time
	// lastPing is the last time that we pinged the server.
	lastPing time.Time
	// lastPong is the last successful time that we pinged the server and
	// received a successful pong back.
	lastPong time.Time

	// flood paces outbound writes; nil when AllowFlood is set.
	flood *FloodPreventer
	// scheduler drains queued outbound lines, gated by flood.
	scheduler *sendScheduler
	// sender is what Client.Send ultimately writes through: a
	// schedulerSender wrapping scheduler, unless Config.Sender overrides it.
	sender Sender
}

// ParseEndpoint resolves an "irc://host[:port]" or "ircs://host[:port]" URI
// (or a bare "host[:port]") into dial settings. The port defaults to 6667
// for plaintext and 6697 for TLS.
func ParseEndpoint(raw string) (server string, port int, ssl bool, err error) {
	if strings.Contains(raw, "://") {
		var u *url.URL
		u, err = url.Parse(raw)
		if err != nil {
			return "", 0, false, err
		}

		switch u.Scheme {
		case "irc":
		case "ircs":
			ssl = true
		default:
			return "", 0, false, &ErrInvalidConfig{Err: errors.New("unsupported scheme: " + u.Scheme)}
		}

		server = u.Hostname()
		if p := u.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil {
				return "", 0, false, err
			}
		}
	} else {
		server = raw
		if host, p, splitErr := net.SplitHostPort(raw); splitErr == nil {
			server = host
			port, err = strconv.Atoi(p)
			if err != nil {
				return "", 0, false, err
			}
		}
	}

	if server == "" {
		return "", 0, false, &ErrInvalidConfig{Err: errors.New("empty server")}
	}

	if port == 0 {
		port = 6667
		if ssl {
			port = 6697
		}
	}

	return server, port, ssl, nil
}

// Dialer is an interface implementation of net.Dialer. Use this if you would
// like to implement your own dialer which the client will use when connecting.
type Dialer interface {
	// Dial takes two arguments. Network, which should be similar to "tcp",
	// "tdp6", "udp", etc -- as well as address, which is the hostname or ip
	// of the network. Note that network can be ignored if your transport
	// doesn't take advantage of network types.
	Dial(network, address string) (net.Conn, error)
}

// newConn sets up and returns a new connection to the server.
func newConn(conf Config, dialer Dialer, addr string) (*ircConn, error) {
	if err := conf.isValid(); err != nil {
		return nil, err
	}

	var conn net.Conn
	var err error

	if dialer == nil {
		netDialer := &net.Dialer{Timeout: 5 * time.Second}

		if conf.Bind != "" {
			var local *net.TCPAddr
			local, err = net.ResolveTCPAddr("tcp", conf.Bind+":0")
			if err != nil {
				return nil, err
			}

			netDialer.LocalAddr = local
		}

		dialer = netDialer
	}

	if conn, err = dialer.Dial("tcp", addr); err != nil {
		return nil, wrapTransportError(err)
	}

	if conf.SSL {
		conn, err = tlsHandshake(conn, conf.TLSConfig, conf.Server, conf.TLSAcceptHook)
		if err != nil {
			return nil, wrapTransportError(err)
		}
	}

	ctime := time.Now()

	c := &ircConn{
		sock:      conn,
		connTime:  &ctime,
		connected: true,
	}
	c.newReadWriter()

	return c, nil
}

func newMockConn(conn net.Conn) *ircConn {
	ctime := time.Now()
	c := &ircConn{
		sock:      conn,
		connTime:  &ctime,
		connected: true,
	}
	c.newReadWriter()

	return c
}

// ErrParseEvent is aliased to ParseEventError.
//
// Deprecated: use ParseEventError instead.
type ErrParseEvent = ParseEventError //nolint:errname

// ParseEventError is returned when an event cannot be parsed with ParseEvent().
type ParseEventError struct {
	Line string
}

func (e ParseEventError) Error() string { return "unable to parse event: " + e.Line }

type decodedEvent struct {
	event *Event
	err   error
}

func (c *ircConn) decode() <-chan decodedEvent {
	ch := make(chan decodedEvent, 1)

	go func() {
		defer close(ch)

		line, err := c.io.ReadString(delim)
		if err != nil {
			ch <- decodedEvent{err: err}
			return
		}

		event := ParseEvent(line)
		if event == nil {
			ch <- decodedEvent{err: ErrParseEvent{Line: line}}
			return
		}

		ch <- decodedEvent{event: event}
	}()

	return ch
}

func (c *ircConn) encode(event *Event) error {
	if _, err := c.io.Write(event.Bytes()); err != nil {
		return err
	}
	if _, err := c.io.Write(endline); err != nil {
		return err
	}

	return c.io.Flush()
}

func (c *ircConn) newReadWriter() {
	c.io = bufio.NewReadWriter(bufio.NewReader(c.sock), bufio.NewWriter(c.sock))
}

// tlsHandshake performs the TLS handshake and, if hook is non-nil, passes it
// the resulting ConnectionState so the caller can accept or reject the
// presented certificate. hook overrides the stdlib's
// own verification: a non-nil return from hook always fails the connection,
// a nil return always succeeds it, even if the handshake itself reported a
// certificate error. With no hook, certificate validation is strict.
func tlsHandshake(conn net.Conn, conf *tls.Config, server string, hook func(*tls.ConnectionState) error) (net.Conn, error) {
	if conf == nil {
		conf = &tls.Config{ServerName: server}
	}
	if hook != nil {
		conf = conf.Clone()
		conf.InsecureSkipVerify = true //nolint:gosec
	}

	tlsConn := tls.Client(conn, conf)
	handshakeErr := tlsConn.Handshake()

	if hook != nil {
		cs := tlsConn.ConnectionState()
		return net.Conn(tlsConn), hook(&cs)
	}

	if handshakeErr != nil {
		return nil, handshakeErr
	}
	return net.Conn(tlsConn), nil
}

// Close closes the underlying socket.
func (c *ircConn) Close() error {
	return c.sock.Close()
}

// markPong records a successful PONG, resetting pingLoop's timeout clock.
func (c *ircConn) markPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// Connect attempts to connect to the given IRC server. Returns only when
// an error has occurred, or a disconnect was requested with Close(). Connect
// will only return once all client-based goroutines have been closed to
// ensure there are no long-running routines becoming backed up.
//
// Connect will wait for all non-goroutine handlers to complete on error/quit,
// however it will not wait for goroutine-based handlers.
//
// If this returns nil, this means that the client requested to be closed
// (e.g. Client.Close()). Connect will panic if called when the last call has
// not completed.
func (c *Client) Connect() error {
	return c.internalConnect(nil, nil)
}

// DialerConnect allows you to specify your own custom dialer which implements
// the Dialer interface.
//
// An example of using this library would be to take advantage of the
// golang.org/x/net/proxy library:
//
//	proxyUrl, _ := proxyURI, err = url.Parse("socks5://1.2.3.4:8888")
//	dialer, _ := proxy.FromURL(proxyURI, &net.Dialer{Timeout: 5 * time.Second})
//	_ = client.DialerConnect(dialer)
func (c *Client) DialerConnect(dialer Dialer) error {
	return c.internalConnect(nil, dialer)
}

// MockConnect is used to implement mocking with an IRC server. Supply a net.Conn
// that will be used to spoof the server. A useful way to do this is to so
// net.Pipe(), pass one end into MockConnect(), and the other end into
// bufio.NewReader().
//
// For example:
//
//	client := ircore.New(ircore.Config{
//		Server: "dummy.int",
//		Port:   6667,
//		Nick:   "test",
//		User:   "test",
//		Name:   "Testing123",
//	})
//
//	in, out := net.Pipe()
//	defer in.Close()
//	defer out.Close()
//	b := bufio.NewReader(in)
//
//	go func() {
//		if err := client.MockConnect(out); err != nil {
//			panic(err)
//		}
//	}()
//
//	defer client.Close(false)
//
//	for {
//		in.SetReadDeadline(time.Now().Add(300 * time.Second))
//		line, err := b.ReadString(byte('\n'))
//		if err != nil {
//			panic(err)
//		}
//
//		event := ircore.ParseEvent(line)
//
//		if event == nil {
//	 		continue
//	 	}
//
//	 	// Do stuff with event here.
//	 }
func (c *Client) MockConnect(conn net.Conn) error {
	return c.internalConnect(conn, nil)
}

func (c *Client) internalConnect(mock net.Conn, dialer Dialer) error {
	// We want to be the only one handling connects/disconnects right now.
	c.mu.Lock()

	if c.conn != nil {
		c.mu.Unlock()
		panic("use of connect more than once")
	}

	// Reset the state.
	c.state.reset(false)
	c.engine.transition(StateConnecting)

	addr := c.server()

	if mock == nil {
		// Validate info, and actually make the connection.
		c.debug.Printf("connecting to %s... (config-ssl: %v)", addr, c.Config.SSL)
		conn, err := newConn(c.Config, dialer, addr)
		if err != nil {
			c.engine.transition(StateDisconnected)
			c.mu.Unlock()
			c.RunHandlers(&Event{Command: CONNECT_FAILED, Trailing: err.Error()})
			return err
		}

		c.conn = conn
	} else {
		c.conn = newMockConn(mock)
	}
	c.conn.flood = NewFloodPreventer(c.Config.FloodMaxBurst, c.Config.FloodCounterPeriod)
	if c.Config.AllowFlood {
		c.conn.flood = nil
	}
	c.conn.scheduler = newSendScheduler(c.conn.flood, c.writeRaw, c.onRawMessageSent, c.onSchedulerError)
	c.conn.sender = schedulerSender{scheduler: c.conn.scheduler}
	if c.Config.Sender != nil {
		c.conn.sender = c.Config.Sender
	}
	c.engine.transition(StateConnected)
	c.mu.Unlock()

	var ctx context.Context
	ctx, c.stop = context.WithCancel(context.Background())

	group := ctxgroup.New(ctx)

	group.Go(c.execLoop)
	group.Go(c.readLoop)
	group.Go(c.schedulerErrLoop)
	group.Go(c.pingLoop)

	// Passwords first.

	if c.Config.WebIRC.Password != "" {
		_ = c.write(&Event{Command: WEBIRC, Params: c.Config.WebIRC.Params(), Sensitive: true})
	}

	if c.Config.ServerPass != "" {
		_ = c.write(&Event{Command: PASS, Params: []string{c.Config.ServerPass}, Sensitive: true})
	}

	// List the IRCv3 capabilities, specifically with the max protocol we
	// support. The IRCv3 specification doesn't directly state if this should
	// be called directly before registration, or if it should be called
	// after NICK/USER requests. It looks like non-supporting networks
	// should ignore this, and some IRCv3 capable networks require this to
	// occur before NICK/USER registration.
	c.listCAP()

	if c.Config.Service != nil {
		_ = c.write(&Event{
			Command:  SERVICE,
			Params:   []string{c.Config.Nick, "*", c.Config.Service.Distribution, "0", "0"},
			Trailing: c.Config.Service.Description,
		})
	} else {
		// Then nickname.
		_ = c.write(&Event{Command: NICK, Params: []string{c.Config.Nick}})

		// Then username and realname.
		if c.Config.Name == "" {
			c.Config.Name = c.Config.User
		}

		_ = c.write(&Event{
			Command:  USER,
			Params:   []string{c.Config.User, userModeBits(c.Config.InitialUserModes), "*"},
			Trailing: c.Config.Name,
		})
	}

	c.engine.transition(StateRegistering)

	// Send a virtual event allowing hooks for successful socket connection.
	c.RunHandlers(&Event{Command: INITIALIZED, Params: []string{addr}})

	// Wait for the first error.
	err := group.Wait()
	if err != nil {
		c.debug.Printf("received error, beginning cleanup: %v", err)
	} else {
		c.debug.Print("received request to close, beginning clean up")
		c.RunHandlers(&Event{Command: CLOSED, Params: []string{addr}})
	}

	// Make sure that the connection is closed if not already.
	c.mu.RLock()
	if c.stop != nil {
		c.stop()
	}
	c.conn.mu.Lock()
	c.conn.connected = false
	if c.conn.scheduler != nil {
		c.conn.scheduler.Close()
	}
	_ = c.conn.Close()
	c.conn.mu.Unlock()
	c.mu.RUnlock()

	c.engine.transition(StateDisconnected)
	c.RunHandlers(&Event{Command: DISCONNECTED, Params: []string{addr}})

	// This helps ensure that the end user isn't improperly using the client
	// more than once. If they want to do this, they should be using multiple
	// clients, not multiple instances of Connect().
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	return err
}

// readLoop sets a timeout of 300 seconds, and then attempts to read from the
// IRC server. If there is an error, it returns it, which ends the
// connection's loops.
func (c *Client) readLoop(ctx context.Context) error {
	c.debug.Print("starting readLoop")
	defer c.debug.Print("closing readLoop")

	var de decodedEvent

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_ = c.conn.sock.SetReadDeadline(time.Now().Add(300 * time.Second))

			select {
			case <-ctx.Done():
				return nil
			case de = <-c.conn.decode():
			}

			if de.err != nil {
				return de.err
			}

			// Check if it's an echo-message.
			if !c.Config.DisableTracking {
				de.event.Echo = (de.event.Command == PRIVMSG || de.event.Command == NOTICE) &&
					de.event.Source != nil && de.event.Source.ID() == c.GetID()
			}

			c.receive(de.event)
		}
	}
}

// receive hands a freshly decoded inbound event to execLoop for dispatch,
// keeping parsing (readLoop) and handler execution (execLoop) on separate
// goroutines.
func (c *Client) receive(event *Event) {
	c.rx <- event
}

// userModeBits encodes requested initial user modes as the USER command's
// numeric mode parameter: "w" is bit 2, "i" is bit 4.
func userModeBits(modes string) string {
	bits := 0
	if strings.ContainsRune(modes, 'w') {
		bits |= 2
	}
	if strings.ContainsRune(modes, 'i') {
		bits |= 4
	}
	return strconv.Itoa(bits)
}

// Send queues an event on the send scheduler, which paces delivery through
// the connection's FloodPreventer, splitting the event first if it's longer
// than the server supports. Send never blocks on connection state: if the
// client isn't connected, the event is dropped and Send returns
// ErrNotConnected. Synchronous argument validation belongs to the Commands
// builders, connection-state errors to this layer. Use Client.RunHandlers()
// if you are simply looking to trigger handlers with an event.
func (c *Client) Send(event *Event) error {
	if c.Config.GlobalFormat && event.Trailing != "" &&
		(event.Command == PRIVMSG || event.Command == TOPIC || event.Command == NOTICE) {
		event.Trailing = Fmt(event.Trailing)
	}

	events := splitEvent(c, event)

	for _, e := range events {
		if err := c.write(e); err != nil {
			return err
		}
	}

	return nil
}

// write hands event to the connection's Sender. The event is dropped, and
// ErrNotConnected returned, if the client isn't connected.
func (c *Client) write(event *Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.conn.sender == nil {
		c.debugLogEvent(event, true)
		return ErrNotConnected
	}

	// Strip tags if the server hasn't negotiated message-tags.
	if event.Tags != nil {
		c.state.RLock()
		var in bool
		for _, cap := range c.state.enabledCap {
			if cap == "message-tags" {
				in = true
				break
			}
		}
		c.state.RUnlock()

		if !in {
			event.Tags = Tags{}
		}
	}

	return c.conn.sender.Send(event)
}

// writeRaw performs the actual transport write for a queued line, invoked
// by the send scheduler from its own tick goroutine.
func (c *Client) writeRaw(data []byte) error {
	c.conn.mu.Lock()
	c.conn.lastWrite = time.Now()
	c.conn.mu.Unlock()

	if _, err := c.conn.io.Write(data); err != nil {
		return err
	}

	return c.conn.io.Flush()
}

// onRawMessageSent fires once the scheduler has successfully written a
// queued line, surfacing the sent command as a RAW_MESSAGE_SENT event.
func (c *Client) onRawMessageSent(token string) {
	c.conn.mu.Lock()
	if token != PING && token != PONG && token != WHO {
		c.conn.lastActive = c.conn.lastWrite
	}
	c.conn.mu.Unlock()

	c.RunHandlers(&Event{Command: RAW_MESSAGE_SENT, Params: []string{token}})

	if token == QUIT {
		c.Close()
	}
}

// onSchedulerError records a failed write as the connection's terminal
// error, handing it to schedulerErrLoop so internalConnect's ctxgroup
// reports it.
func (c *Client) onSchedulerError(err error) {
	select {
	case c.schedulerErr <- err:
	default:
	}
}

// schedulerErrLoop waits for a write failure reported by the send
// scheduler and returns it, joining the other I/O loops in the ctxgroup.
func (c *Client) schedulerErrLoop(ctx context.Context) error {
	select {
	case err := <-c.schedulerErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// rate allows limiting events based on how frequent the event is being sent,
// as well as how many characters each event has.
//
// Deprecated: pacing is now handled by the send scheduler (scheduler.go)
// gated on FloodPreventer; this is kept only for direct unit testing of the
// char-count heuristic it implements.
func (c *ircConn) rate(chars int) time.Duration {
	_time := time.Second + ((time.Duration(chars) * time.Second) / 100)

	if c.writeDelay += _time - time.Since(c.lastWrite); c.writeDelay < 0 {
		c.writeDelay = 0
	}

	if c.writeDelay > (8 * time.Second) {
		return _time
	}

	return 0
}

// ErrTimedOut is aliased to TimedOutError.
//
// Deprecated: use TimedOutError instead.
type ErrTimedOut = TimedOutError //nolint:errname

// TimedOutError is returned when we attempt to ping the server, and timed out
// before receiving a PONG back.
type TimedOutError struct {
	// TimeSinceSuccess is how long ago we received a successful pong.
	TimeSinceSuccess time.Duration
	// LastPong is the time we received our last successful pong.
	LastPong time.Time
	// LastPing is the last time we sent a ping request.
	LastPing time.Time
	// Delay is the configured delay between how often we send a ping request.
	Delay time.Duration
}

func (TimedOutError) Error() string { return "timed out waiting for a requested PING response" }

func (c *Client) pingLoop(ctx context.Context) error {
	// Don't run the pingLoop if they want to disable it.
	if c.Config.PingDelay <= 0 {
		return nil
	}

	c.debug.Print("starting pingLoop")
	defer c.debug.Print("closing pingLoop")

	c.conn.mu.Lock()
	c.conn.lastPing = time.Now()
	c.conn.lastPong = time.Now()
	c.conn.mu.Unlock()

	tick := time.NewTicker(c.Config.PingDelay)
	defer tick.Stop()

	started := time.Now()
	past := false
	pingSent := false

	for {
		select {
		case <-tick.C:
			// Delay during connect to wait for the client to register, otherwise
			// some ircd's will not respond (e.g. during SASL negotiation).
			if !past {
				if time.Since(started) < 30*time.Second {
					continue
				}

				past = true
			}

			c.conn.mu.RLock()
			if pingSent && time.Since(c.conn.lastPong) > c.Config.PingDelay+c.Config.PingTimeout {
				// PingTimeout exceeded, connection has probably dropped.
				err := ErrTimedOut{
					TimeSinceSuccess: time.Since(c.conn.lastPong),
					LastPong:         c.conn.lastPong,
					LastPing:         c.conn.lastPing,
					Delay:            c.Config.PingDelay,
				}

				c.conn.mu.RUnlock()
				return err
			}
			c.conn.mu.RUnlock()

			c.conn.mu.Lock()
			c.conn.lastPing = time.Now()
			c.conn.mu.Unlock()

			c.Cmd.Ping(strconv.FormatInt(time.Now().UnixNano(), 10))
			pingSent = true
		case <-ctx.Done():
			return nil
		}
	}
}
