// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"encoding/base64"
	"errors"
)

// SASLMech is implemented by supported SASL authentication mechanisms,
// negotiated over IRCv3's AUTHENTICATE command once the "sasl" capability
// has been ACK'd during CAP negotiation.
type SASLMech interface {
	// Name returns the mechanism name sent with the initial AUTHENTICATE.
	Name() string
	// Authenticate sends the initial AUTHENTICATE request for this
	// mechanism, once the server has ACK'd the "sasl" capability.
	Authenticate(c *Client) error
	// Handle processes an AUTHENTICATE challenge or SASL numeric reply.
	// done reports whether negotiation has concluded (successfully or not).
	Handle(c *Client, e *Event) (done bool, err error)
}

// authChunkSize is the max length of a single AUTHENTICATE payload line,
// per the IRCv3 SASL spec; a full 400-byte line signals more data follows.
const authChunkSize = 400

// SASLPlain implements the SASL "PLAIN" mechanism (RFC 4616): the
// authorization identity, authentication identity, and password are
// null-separated and base64 encoded.
type SASLPlain struct {
	User string
	Pass string
}

// Name returns "PLAIN".
func (sasl *SASLPlain) Name() string { return "PLAIN" }

// Authenticate requests the PLAIN mechanism.
func (sasl *SASLPlain) Authenticate(c *Client) error {
	return c.write(&Event{Command: AUTHENTICATE, Params: []string{sasl.Name()}})
}

// Handle responds to the server's "+" continuation with the encoded
// credentials, then waits for the success/failure numeric.
func (sasl *SASLPlain) Handle(c *Client, e *Event) (bool, error) {
	switch e.Command {
	case AUTHENTICATE:
		if len(e.Params) < 1 || e.Params[0] != "+" {
			return true, errors.New("sasl plain: unexpected authenticate challenge")
		}

		payload := base64.StdEncoding.EncodeToString(
			[]byte(sasl.User + "\x00" + sasl.User + "\x00" + sasl.Pass),
		)

		for len(payload) >= authChunkSize {
			if err := c.write(&Event{Command: AUTHENTICATE, Params: []string{payload[:authChunkSize]}}); err != nil {
				return true, err
			}
			payload = payload[authChunkSize:]
		}
		if len(payload) == 0 {
			payload = "+"
		}
		return false, c.write(&Event{Command: AUTHENTICATE, Params: []string{payload}})
	case RPL_SASLSUCCESS:
		return true, nil
	case ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED, RPL_NICKLOCKED:
		return true, errors.New("sasl plain: " + e.Trailing)
	}
	return false, nil
}
