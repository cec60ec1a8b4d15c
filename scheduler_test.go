// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerRecorder struct {
	mu     sync.Mutex
	lines  []string
	tokens []string
	errs   []error
}

func (r *schedulerRecorder) write(data []byte) error {
	r.mu.Lock()
	r.lines = append(r.lines, string(data))
	r.mu.Unlock()
	return nil
}

func (r *schedulerRecorder) sent(token string) {
	r.mu.Lock()
	r.tokens = append(r.tokens, token)
	r.mu.Unlock()
}

func (r *schedulerRecorder) fail(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *schedulerRecorder) snapshot() (lines, tokens []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...), append([]string(nil), r.tokens...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for scheduler")
}

func TestSchedulerOrder(t *testing.T) {
	rec := &schedulerRecorder{}
	s := newSendScheduler(nil, rec.write, rec.sent, rec.fail)
	defer s.Close()

	s.Enqueue([]byte("PING :1\r\n"), PING)
	s.Enqueue([]byte("PRIVMSG #x :hi\r\n"), PRIVMSG)
	s.Enqueue([]byte("QUIT :bye\r\n"), QUIT)

	waitFor(t, func() bool {
		_, tokens := rec.snapshot()
		return len(tokens) == 3
	})
	lines, tokens := rec.snapshot()
	require.Equal(t, []string{"PING :1\r\n", "PRIVMSG #x :hi\r\n", "QUIT :bye\r\n"}, lines)
	assert.Equal(t, []string{PING, PRIVMSG, QUIT}, tokens)
}

func TestSchedulerPacing(t *testing.T) {
	rec := &schedulerRecorder{}
	flood := NewFloodPreventer(2, 500*time.Millisecond)
	s := newSendScheduler(flood, rec.write, rec.sent, rec.fail)
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Enqueue([]byte("PRIVMSG #x :spam\r\n"), PRIVMSG)
	}

	// The burst goes out immediately; the tail is gated.
	waitFor(t, func() bool {
		lines, _ := rec.snapshot()
		return len(lines) >= 2
	})
	lines, _ := rec.snapshot()
	assert.Less(t, len(lines), 4)

	// Eventually the bucket leaks enough for the rest.
	waitFor(t, func() bool {
		lines, _ := rec.snapshot()
		return len(lines) == 4
	})
}

func TestSchedulerWriteFailure(t *testing.T) {
	boom := errors.New("broken pipe")
	var mu sync.Mutex
	var got []error

	s := newSendScheduler(nil,
		func([]byte) error { return boom },
		func(string) {},
		func(err error) {
			mu.Lock()
			got = append(got, err)
			mu.Unlock()
		})

	s.Enqueue([]byte("PING :x\r\n"), PING)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, boom, got[0])
	mu.Unlock()

	// The scheduler stops after a write failure; later enqueues are dropped.
	s.Enqueue([]byte("PING :y\r\n"), PING)
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}
