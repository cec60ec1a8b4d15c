// Copyright 2016 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package ircore

// Sender is an interface for sending IRC messages. Every outbound event a
// Client produces passes through one: the default implementation queues
// onto the connection's flood-paced send scheduler, and Config.Sender lets
// callers substitute their own (e.g. a recorder in tests, or a sender that
// mirrors traffic elsewhere).
type Sender interface {
	// Send sends the given message and returns any errors.
	Send(*Event) error
}

// schedulerSender is the default Sender: it serializes the event and hands
// it to the connection's send scheduler, which releases it gated by the
// flood preventer.
type schedulerSender struct {
	scheduler *sendScheduler
}

// Send queues the specified event.
func (s schedulerSender) Send(event *Event) error {
	s.scheduler.Enqueue(append(event.Bytes(), endline...), event.Command)
	return nil
}
