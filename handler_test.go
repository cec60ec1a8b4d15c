// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return New(Config{Server: "dummy.int", Port: 6667, Nick: "test", User: "test", Name: "Testing123"})
}

func TestHandlerAddRemove(t *testing.T) {
	c := newTestClient()

	cuid := c.Handlers.Add(PRIVMSG, func(c *Client, e *Event) {})
	require.NotEmpty(t, cuid)
	assert.Equal(t, 1, c.Handlers.Count(PRIVMSG))

	assert.True(t, c.Handlers.Remove(cuid))
	assert.Equal(t, 0, c.Handlers.Count(PRIVMSG))

	assert.False(t, c.Handlers.Remove("bogus"))
	assert.False(t, c.Handlers.Remove(""))
}

func TestHandlerExec(t *testing.T) {
	c := newTestClient()

	var fg, bg uint64
	c.Handlers.Add(PRIVMSG, func(c *Client, e *Event) { atomic.AddUint64(&fg, 1) })
	c.Handlers.AddBg(PRIVMSG, func(c *Client, e *Event) { atomic.AddUint64(&bg, 1) })

	c.RunHandlers(ParseEvent(":bob!b@h PRIVMSG #chan :hi"))

	assert.Equal(t, uint64(1), atomic.LoadUint64(&fg))

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadUint64(&bg) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, uint64(1), atomic.LoadUint64(&bg))
}

func TestHandlerCaseInsensitive(t *testing.T) {
	c := newTestClient()

	var count uint64
	c.Handlers.Add("privmsg", func(c *Client, e *Event) { atomic.AddUint64(&count, 1) })

	c.RunHandlers(ParseEvent(":bob!b@h PRIVMSG #chan :hi"))
	assert.Equal(t, uint64(1), atomic.LoadUint64(&count))
}

func TestHandlerNumericRange(t *testing.T) {
	c := newTestClient()

	var codes []string
	c.Handlers.AddRange(400, 599, func(c *Client, e *Event) {
		codes = append(codes, e.Command)
	})

	c.RunHandlers(ParseEvent(":server 433 test bad :Nickname is already in use"))
	c.RunHandlers(ParseEvent(":server 502 test :Cannot change mode for other users"))
	c.RunHandlers(ParseEvent(":server 353 test = #chan :a b c"))
	c.RunHandlers(ParseEvent(":server PRIVMSG test :not a numeric"))

	assert.Equal(t, []string{"433", "502"}, codes)
}

func TestHandlerRangeBounds(t *testing.T) {
	c := newTestClient()

	var hits int
	c.Handlers.AddRange(400, 400, func(c *Client, e *Event) { hits++ })

	c.RunHandlers(&Event{Command: "400"})
	c.RunHandlers(&Event{Command: "399"})
	c.RunHandlers(&Event{Command: "401"})

	assert.Equal(t, 1, hits)
}

func TestHandlerClear(t *testing.T) {
	c := newTestClient()

	c.Handlers.Add(PRIVMSG, func(c *Client, e *Event) {})
	c.Handlers.Add(NOTICE, func(c *Client, e *Event) {})
	require.Equal(t, 2, c.Handlers.Len())

	c.Handlers.Clear(PRIVMSG)
	assert.Equal(t, 0, c.Handlers.Count(PRIVMSG))
	assert.Equal(t, 1, c.Handlers.Count(NOTICE))

	c.Handlers.ClearAll()
	assert.Equal(t, 0, c.Handlers.Len())
}

func TestHandlerRecover(t *testing.T) {
	var recovered *HandlerError

	c := New(Config{
		Server: "dummy.int", Port: 6667, Nick: "test", User: "test",
		RecoverFunc: func(c *Client, err *HandlerError) { recovered = err },
	})

	c.Handlers.Add(PRIVMSG, func(c *Client, e *Event) { panic("boom") })
	c.RunHandlers(ParseEvent(":bob!b@h PRIVMSG #chan :hi"))

	require.NotNil(t, recovered)
	assert.Equal(t, "boom", recovered.Panic)
	assert.NotEmpty(t, recovered.Error())
}
