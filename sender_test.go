// Copyright 2016 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package ircore

import (
	"sync"
	"testing"
	"time"
)

func TestSchedulerSender(t *testing.T) {
	rec := &schedulerRecorder{}
	scheduler := newSendScheduler(nil, rec.write, rec.sent, rec.fail)
	defer scheduler.Close()

	var s Sender = schedulerSender{scheduler: scheduler}

	e := &Event{Command: PRIVMSG, Params: []string{"#chan"}, Trailing: "hello world"}
	if err := s.Send(e); err != nil {
		t.Fatalf("schedulerSender.Send() returned error: %s", err)
	}

	waitFor(t, func() bool {
		lines, _ := rec.snapshot()
		return len(lines) == 1
	})

	lines, tokens := rec.snapshot()
	want := e.String() + "\r\n"
	if lines[0] != want {
		t.Errorf("schedulerSender.Send() wrote %q, want %q", lines[0], want)
	}
	if tokens[0] != PRIVMSG {
		t.Errorf("schedulerSender.Send() queued token %q, want %q", tokens[0], PRIVMSG)
	}
}

// recordingSender collects every event a Client writes, standing in for
// the default flood-paced sender via Config.Sender.
type recordingSender struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recordingSender) Send(event *Event) error {
	r.mu.Lock()
	r.events = append(r.events, event.Copy())
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Command)
	}
	return out
}

func TestConfigSenderOverride(t *testing.T) {
	rec := &recordingSender{}

	c, conn, server := genMockConn()
	c.Config.Sender = rec

	defer conn.Close()
	defer server.Close()

	go func() {
		_ = c.MockConnect(server)
	}()
	defer c.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.commands()) >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cmds := rec.commands()
	if len(cmds) < 3 {
		t.Fatalf("recording sender saw %d events, wanted the registration burst: %#v", len(cmds), cmds)
	}

	// Registration goes through the swapped-in Sender: CAP LS, NICK, USER.
	if cmds[0] != CAP || cmds[1] != NICK || cmds[2] != USER {
		t.Fatalf("recording sender saw %#v, wanted [CAP NICK USER ...]", cmds)
	}
}
