// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"bufio"
	"bytes"
	"net"
	"testing"
	"time"
)

func TestNewConn(t *testing.T) {
	conf := Config{Server: "", Port: 6667, Nick: "nick", User: "user", Name: "realname"}
	conn, err := newConn(conf, nil, conf.Server+":6667")
	if err == nil {
		t.Fatal("invalid server but no error")
	}
	conf.Server = "irc.byteirc.org"
	conn, err = newConn(conf, nil, conf.Server+":6667")
	if err != nil {
		t.Fatal(err)
	}
	if !conn.connected {
		t.Fatal("conn provided but not connected")
	}
	conn.Close()
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		server  string
		port    int
		ssl     bool
		wantErr bool
	}{
		{in: "irc://irc.example.com", server: "irc.example.com", port: 6667},
		{in: "irc://irc.example.com:7000", server: "irc.example.com", port: 7000},
		{in: "ircs://irc.example.com", server: "irc.example.com", port: 6697, ssl: true},
		{in: "ircs://irc.example.com:7697", server: "irc.example.com", port: 7697, ssl: true},
		{in: "irc.example.com", server: "irc.example.com", port: 6667},
		{in: "irc.example.com:6697", server: "irc.example.com", port: 6697},
		{in: "https://irc.example.com", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		server, port, ssl, err := ParseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseEndpoint(%q) expected error, got %q %d %t", tt.in, server, port, ssl)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEndpoint(%q) returned error: %s", tt.in, err)
			continue
		}
		if server != tt.server || port != tt.port || ssl != tt.ssl {
			t.Errorf("ParseEndpoint(%q) = %q %d %t, want %q %d %t", tt.in, server, port, ssl, tt.server, tt.port, tt.ssl)
		}
	}
}

func mockBuffers() (in *bytes.Buffer, out *bytes.Buffer, irc *ircConn) {
	in = &bytes.Buffer{}
	out = &bytes.Buffer{}
	irc = &ircConn{
		io:        bufio.NewReadWriter(bufio.NewReader(in), bufio.NewWriter(out)),
		connected: true,
	}

	return in, out, irc
}

func TestDecode(t *testing.T) {
	in, _, c := mockBuffers()

	e := mockEvent()

	in.Write(e.Bytes())
	in.Write(endline)

	de := <-c.decode()
	if de.err != nil {
		t.Fatalf("received error during decode: %s", de.err)
	}

	if de.event.String() != e.String() {
		t.Fatalf("event returned from decode not the same as mock event. want %#v, got %#v", e, de.event)
	}

	// Test a failure.
	in.WriteString("::abcd\r\n")
	de = <-c.decode()
	if de.err == nil {
		t.Fatalf("should have failed to parse decoded event. got: %#v", de.event)
	}

	return
}

func TestEncode(t *testing.T) {
	_, out, c := mockBuffers()

	e := mockEvent()

	err := c.encode(e)
	if err != nil {
		t.Fatalf("received error during encode: %s", err)
	}

	line, err := out.ReadString(delim)
	if err != nil {
		t.Fatalf("received error during check for encoded event: %s", err)
	}

	want := e.String() + "\r\n"

	if want != line {
		t.Fatalf("encoded line wanted: %q, got: %q", want, line)
	}

	return
}

func TestRate(t *testing.T) {
	_, _, c := mockBuffers()
	c.lastWrite = time.Now()
	if delay := c.rate(100); delay > time.Second {
		t.Fatal("first instance of rate is > second")
	}

	for i := 0; i < 500; i++ {
		c.rate(200)
	}

	if delay := c.rate(200); delay > (3 * time.Second) {
		t.Fatal("rate delay too high")
	}

	return
}

func genMockConn() (client *Client, clientConn net.Conn, serverConn net.Conn) {
	client = New(Config{
		Server: "dummy.int",
		Port:   6667,
		Nick:   "test",
		User:   "test",
		Name:   "Testing123",
	})

	conn1, conn2 := net.Pipe()

	return client, conn1, conn2
}

// mockReadBuffer drains lines written by the client on its end of a mock
// pipe connection, so the client never blocks writing into an unread pipe.
func mockReadBuffer(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
	}
}

func TestConnect(t *testing.T) {
	c, conn, server := genMockConn()
	b := bufio.NewReader(conn)

	defer conn.Close()
	defer server.Close()

	go c.MockConnect(server)
	defer c.Close()

	var counter int
	var events []*Event

	for {
		counter++

		if counter > 3 {
			break
		}

		conn.SetReadDeadline(time.Now().Add(time.Second))
		out, err := b.ReadString(byte('\n'))
		if err != nil {
			panic(err)
		}

		events = append(events, ParseEvent(out))
	}

	if len(events) < 3 {
		t.Fatal("TestConnect returned less than 3 initial events during connect")
	}

	// The events should at least consist of:
	// CAP LS 302
	// NICK test
	// USER test 0 * :Testing123

	if events[0].Command != "CAP" || events[0].Params[0] != "LS" {
		t.Fatalf("TestConnect: invalid cap command: %#v", events[0])
	}

	if events[1].Command != "NICK" || events[1].Params[0] != c.Config.Nick {
		t.Fatalf("TestConnect: invalid nick command: %#v", events[1])
	}

	if events[2].Command != "USER" || events[2].Params[0] != c.Config.User || events[2].Last() != c.Config.Name {
		t.Fatalf("TestConnect: invalid user command: %#v", events[2])
	}
}
