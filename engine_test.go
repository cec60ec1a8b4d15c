// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"bufio"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "registering", StateRegistering.String())
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "quitting", StateQuitting.String())
}

func TestInitialState(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestChannelMessageParsing(t *testing.T) {
	c := newTestClient()

	var got MessageReceived
	var fired bool
	c.OnMessageReceived(func(c *Client, m MessageReceived) {
		got = m
		fired = true
	})

	e := ParseEvent(":alice!a@host PRIVMSG #chan :hello world")
	require.NotNil(t, e)
	require.NotNil(t, e.Source)
	assert.Equal(t, "alice", e.Source.Name)
	assert.Equal(t, "a", e.Source.Ident)
	assert.Equal(t, "host", e.Source.Host)
	assert.Equal(t, "PRIVMSG", e.Command)
	assert.Equal(t, []string{"#chan"}, e.Params)
	assert.Equal(t, "hello world", e.Trailing)

	c.RunHandlers(e)

	require.True(t, fired)
	assert.Equal(t, "#chan", got.Target)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, "alice", got.Source.Name)
}

func TestPreviewMessageConsumption(t *testing.T) {
	c := newTestClient()

	var previews, messages int
	c.OnPreviewMessageReceived(func(c *Client, ev *PreviewMessageReceived) {
		previews++
		ev.Handled = true
	})
	c.OnMessageReceived(func(c *Client, m MessageReceived) { messages++ })

	c.RunHandlers(ParseEvent(":alice!a@host PRIVMSG #chan :hello"))

	assert.Equal(t, 1, previews)
	assert.Equal(t, 0, messages)
}

func TestWelcomeTransition(t *testing.T) {
	c := newTestClient()
	c.engine.transition(StateRegistering)

	registered := make(chan struct{}, 1)
	c.Handlers.Add(REGISTERED, func(c *Client, e *Event) {
		select {
		case registered <- struct{}{}:
		default:
		}
	})

	c.RunHandlers(ParseEvent(":server 001 mynick :Welcome to the network mynick"))

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the registered event")
	}

	assert.Equal(t, StateRegistered, c.State())
	assert.Equal(t, "mynick", c.GetNick())
}

func TestISUPPORTPrefix(t *testing.T) {
	c := newTestClient()

	c.RunHandlers(ParseEvent(":server 005 mynick PREFIX=(ov)@+ CHANTYPES=#& :are supported by this server"))

	prefix, ok := c.GetServerOption("PREFIX")
	require.True(t, ok)
	assert.Equal(t, "(ov)@+", prefix)

	chantypes, ok := c.GetServerOption("CHANTYPES")
	require.True(t, ok)
	assert.Equal(t, "#&", chantypes)

	assert.Equal(t, "ov", c.ChannelUserModes())

	mode, ok := c.ModeForPrefix('@')
	require.True(t, ok)
	assert.Equal(t, byte('o'), mode)

	mode, ok = c.ModeForPrefix('+')
	require.True(t, ok)
	assert.Equal(t, byte('v'), mode)

	pfx, ok := c.PrefixForMode('o')
	require.True(t, ok)
	assert.Equal(t, byte('@'), pfx)

	_, ok = c.ModeForPrefix('%')
	assert.False(t, ok)
}

func TestKickHandling(t *testing.T) {
	c := newTestClient()

	c.RunHandlers(ParseEvent(":test!t@h JOIN #chan"))
	c.RunHandlers(ParseEvent(":bob!b@h JOIN #chan"))

	channel := c.LookupChannel("#chan")
	require.NotNil(t, channel)
	require.True(t, channel.UserIn("bob"))

	var kicked UserKicked
	c.OnUserKicked(func(c *Client, k UserKicked) { kicked = k })

	c.RunHandlers(ParseEvent(":op!o@h KICK #chan bob :bye"))

	channel = c.LookupChannel("#chan")
	require.NotNil(t, channel)
	assert.False(t, channel.UserIn("bob"))

	assert.Equal(t, "#chan", kicked.Channel)
	assert.Equal(t, "bob", kicked.Kicked)
	assert.Equal(t, "bye", kicked.Reason)
	assert.Equal(t, "op", kicked.By.Name)

	// bob is still known to the client even though he was kicked.
	assert.NotNil(t, c.LookupUser("bob"))
}

func TestQuitHandling(t *testing.T) {
	c := newTestClient()

	c.RunHandlers(ParseEvent(":test!t@h JOIN #chan"))
	c.RunHandlers(ParseEvent(":bob!b@h JOIN #chan"))

	var quit UserQuit
	var left []string
	c.OnUserQuit(func(c *Client, q UserQuit) { quit = q })
	c.OnUserLeft(func(c *Client, l UserLeft) { left = append(left, l.Channel) })

	c.RunHandlers(ParseEvent(":bob!b@h QUIT :gone fishing"))

	assert.Equal(t, "bob", quit.User.Name)
	assert.Equal(t, "gone fishing", quit.Reason)
	assert.Equal(t, []string{"#chan"}, left)

	// bob held no other references, so the QUIT reaps him entirely.
	assert.Nil(t, c.LookupUser("bob"))

	channel := c.LookupChannel("#chan")
	require.NotNil(t, channel)
	assert.False(t, channel.UserIn("bob"))
}

func TestNickChangeHandling(t *testing.T) {
	c := newTestClient()

	c.RunHandlers(ParseEvent(":bob!b@h JOIN #chan"))

	var change NickNameChanged
	c.OnNickNameChanged(func(c *Client, n NickNameChanged) { change = n })

	c.RunHandlers(ParseEvent(":bob!b@h NICK :robert"))

	assert.Equal(t, "bob", change.Old)
	assert.Equal(t, "robert", change.New)
	assert.Nil(t, c.LookupUser("bob"))
	require.NotNil(t, c.LookupUser("robert"))

	channel := c.LookupChannel("#chan")
	require.NotNil(t, channel)
	assert.True(t, channel.UserIn("robert"))
}

func TestTopicHandling(t *testing.T) {
	c := newTestClient()

	c.RunHandlers(ParseEvent(":test!t@h JOIN #chan"))

	var topic TopicChanged
	c.OnTopicChanged(func(c *Client, tc TopicChanged) { topic = tc })

	c.RunHandlers(ParseEvent(":op!o@h TOPIC #chan :brand new topic"))

	assert.Equal(t, "#chan", topic.Channel)
	assert.Equal(t, "brand new topic", topic.Topic)
	assert.Equal(t, "brand new topic", c.LookupChannel("#chan").Topic)
}

func TestChannelListRun(t *testing.T) {
	c := newTestClient()

	var list ChannelListReceived
	var fired bool
	c.OnChannelListReceived(func(c *Client, l ChannelListReceived) {
		list = l
		fired = true
	})

	c.RunHandlers(ParseEvent(":server 321 test Channel :Users Name"))
	c.RunHandlers(ParseEvent(":server 322 test #go 42 :all things go"))
	c.RunHandlers(ParseEvent(":server 322 test #irc 7 :protocol talk"))
	c.RunHandlers(ParseEvent(":server 323 test :End of /LIST"))

	require.True(t, fired)
	require.Len(t, list.Items, 2)
	assert.Equal(t, ChannelListItem{Name: "#go", UserCount: 42, Topic: "all things go"}, list.Items[0])
	assert.Equal(t, ChannelListItem{Name: "#irc", UserCount: 7, Topic: "protocol talk"}, list.Items[1])
}

func TestProtocolErrorSurface(t *testing.T) {
	c := newTestClient()

	var perr *ProtocolError
	c.OnProtocolError(func(c *Client, p *ProtocolError) { perr = p })

	c.RunHandlers(ParseEvent(":server 442 test #chan :You're not on that channel"))

	require.NotNil(t, perr)
	assert.Equal(t, "442", perr.Code)
	assert.Equal(t, "You're not on that channel", perr.Message)
}

// TestCTCPVersionReply drives scenario four end to end: an incoming CTCP
// VERSION request produces a NOTICE reply with the configured version, and
// no MessageReceived event fires for the carrier PRIVMSG.
func TestCTCPVersionReply(t *testing.T) {
	c, conn, server := genMockConn()
	c.Config.Version = "Test/1.0"

	defer conn.Close()
	defer server.Close()
	defer c.Close()

	go func() {
		_ = c.MockConnect(server)
	}()

	sreader := bufio.NewReader(conn)
	if !waitForText(sreader, "USER") {
		t.Fatal("timed out while waiting for registration")
	}

	var messages uint64
	c.OnMessageReceived(func(c *Client, m MessageReceived) { atomic.AddUint64(&messages, 1) })

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, err := conn.Write([]byte(":peer!p@h PRIVMSG test :\x01VERSION\x01\r\n"))
	require.NoError(t, err)

	if !waitForText(sreader, `NOTICE peer :\x01VERSION Test/1.0\x01`) {
		t.Fatal("timed out while waiting for the version reply")
	}

	assert.Equal(t, uint64(0), atomic.LoadUint64(&messages))
}
