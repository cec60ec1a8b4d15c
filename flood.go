// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"sync"
	"time"
)

// FloodPreventer implements the leaky-bucket pacing discipline used by the
// send scheduler. A counter increases by one on every sent message and
// leaks back down at a steady rate, permitting short bursts up to
// MaxBurst while capping the sustained send rate to one message per
// CounterPeriod once the burst allowance is exhausted.
type FloodPreventer struct {
	mu sync.Mutex

	// MaxBurst is the number of messages that may be sent back-to-back
	// before pacing kicks in.
	MaxBurst int
	// CounterPeriod is how long it takes the counter to leak down by one.
	CounterPeriod time.Duration

	counter       int
	lastDecrement time.Time
}

// DefaultFloodMaxBurst and DefaultFloodCounterPeriod are the pacing
// defaults used when Config doesn't override them.
const (
	DefaultFloodMaxBurst      = 4
	DefaultFloodCounterPeriod = 2000 * time.Millisecond
)

// NewFloodPreventer returns a FloodPreventer configured with the given
// burst/period, or the documented defaults if either is zero.
func NewFloodPreventer(maxBurst int, counterPeriod time.Duration) *FloodPreventer {
	if maxBurst <= 0 {
		maxBurst = DefaultFloodMaxBurst
	}
	if counterPeriod <= 0 {
		counterPeriod = DefaultFloodCounterPeriod
	}
	return &FloodPreventer{
		MaxBurst:      maxBurst,
		CounterPeriod: counterPeriod,
		lastDecrement: time.Now(),
	}
}

// GetSendDelay returns how long to wait before the next send is permitted.
// Zero means send immediately.
func (f *FloodPreventer) GetSendDelay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSendDelay(time.Now())
}

func (f *FloodPreventer) getSendDelay(now time.Time) time.Duration {
	elapsed := now.Sub(f.lastDecrement)
	if elapsed < 0 {
		elapsed = 0
	}

	periods := int(elapsed / f.CounterPeriod)
	if periods > f.counter {
		periods = f.counter
	}
	f.counter -= periods
	f.lastDecrement = f.lastDecrement.Add(time.Duration(periods) * f.CounterPeriod)

	remaining := elapsed - time.Duration(periods)*f.CounterPeriod

	delay := time.Duration(f.counter-f.MaxBurst)*f.CounterPeriod - remaining
	if delay < 0 {
		delay = 0
	}
	return delay
}

// OnSent records that a message was sent, incrementing the burst counter.
func (f *FloodPreventer) OnSent() {
	f.mu.Lock()
	f.counter++
	f.mu.Unlock()
}

// Reset clears the bucket back to empty, as if the client had just
// connected.
func (f *FloodPreventer) Reset() {
	f.mu.Lock()
	f.counter = 0
	f.lastDecrement = time.Now()
	f.mu.Unlock()
}
