// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// IRCv3 CAP subcommands.
const (
	CAP_LS  = "LS"
	CAP_LIST = "LIST"
	CAP_REQ = "REQ"
	CAP_ACK = "ACK"
	CAP_NAK = "NAK"
	CAP_END = "END"
	CAP_NEW = "NEW"
	CAP_DEL = "DEL"
)

var possibleCap = map[string][]string{
	"account-notify":    nil,
	"account-tag":       nil,
	"away-notify":       nil,
	"batch":             nil,
	"cap-notify":        nil,
	"chghost":           nil,
	"extended-join":     nil,
	"message-tags":      nil,
	"multi-prefix":      nil,
	"userhost-in-names": nil,
}

func (c *Client) listCAP() error {
	if !c.Config.DisableTracking && !c.Config.DisableCapTracking {
		return c.write(&Event{Command: CAP, Params: []string{CAP_LS, "302"}})
	}
	return nil
}

func possibleCapList(c *Client) map[string][]string {
	out := make(map[string][]string)

	for k := range c.Config.SupportedCaps {
		out[k] = c.Config.SupportedCaps[k]
	}
	for k := range possibleCap {
		out[k] = possibleCap[k]
	}

	if c.Config.SASL != nil {
		out["sasl"] = nil
	}

	return out
}

func parseCap(raw string) map[string][]string {
	out := make(map[string][]string)
	parts := strings.Split(raw, " ")

	for i := 0; i < len(parts); i++ {
		val := strings.IndexByte(parts[i], prefixTagValue) // =

		if val < 1 || len(parts[i]) < val+1 {
			out[parts[i]] = []string{}
			continue
		}

		out[parts[i][:val]] = strings.Split(parts[i][val+1:], ",")
	}

	return out
}

// handleCAP negotiates IRCv3 capabilities during registration. Connect sends
// NICK/USER right after CAP LS; it does not wait for this negotiation to
// finish.
func handleCAP(c *Client, e *Event) {
	if len(e.Params) >= 2 && (e.Params[1] == CAP_NEW || e.Params[1] == CAP_DEL) {
		c.listCAP()
		return
	}

	if len(e.Params) == 2 && e.Params[1] == CAP_NAK {
		c.write(&Event{Command: CAP, Params: []string{CAP_END}})
		return
	}

	possible := possibleCapList(c)

	if len(e.Params) >= 2 && len(e.Trailing) > 1 && e.Params[1] == CAP_LS {
		c.state.Lock()

		caps := parseCap(e.Trailing)

		for k := range caps {
			supported, ok := possible[k]
			if !ok {
				continue
			}

			if len(supported) == 0 || len(caps[k]) == 0 {
				c.state.tmpCap = append(c.state.tmpCap, k)
				continue
			}

			var contains bool
			for i := 0; i < len(caps[k]) && !contains; i++ {
				for j := 0; j < len(supported); j++ {
					if caps[k][i] == supported[j] {
						contains = true
						break
					}
				}
			}

			if contains {
				c.state.tmpCap = append(c.state.tmpCap, k)
			}
		}
		c.state.Unlock()

		// Two args means this is the last LS line of a possibly multi-line
		// response.
		if len(e.Params) == 2 {
			c.state.Lock()
			pending := c.state.tmpCap
			c.state.tmpCap = nil
			c.state.Unlock()

			if len(pending) == 0 {
				c.write(&Event{Command: CAP, Params: []string{CAP_END}})
				return
			}

			c.write(&Event{Command: CAP, Params: []string{CAP_REQ}, Trailing: strings.Join(pending, " ")})
		}
	}

	if len(e.Params) == 2 && len(e.Trailing) > 1 && e.Params[1] == CAP_ACK {
		c.state.Lock()
		c.state.enabledCap = strings.Split(e.Trailing, " ")
		c.state.Unlock()

		if c.Config.SASL != nil {
			for _, cap := range c.state.enabledCap {
				if cap == "sasl" {
					c.Config.SASL.Authenticate(c)
					return
				}
			}
		}

		c.write(&Event{Command: CAP, Params: []string{CAP_END}})
		return
	}
}

// handleSASL drives SASL negotiation once the "sasl" capability has been
// ACK'd: it forwards AUTHENTICATE challenges and the SASL numeric replies
// to the configured SASLMech, ending CAP negotiation once it reports done.
func handleSASL(c *Client, e *Event) {
	if c.Config.SASL == nil {
		return
	}

	done, err := c.Config.SASL.Handle(c, e)
	if err != nil {
		c.debug.Printf("sasl authentication error: %s", err)
	}
	if done {
		c.write(&Event{Command: CAP, Params: []string{CAP_END}})
	}
}

// handleSASLError aborts SASL negotiation on any of the SASL failure
// numerics and falls through to finishing CAP negotiation regardless, so
// registration can still proceed without authentication.
func handleSASLError(c *Client, e *Event) {
	c.debug.Printf("sasl authentication failed: %s", e.Trailing)
	c.write(&Event{Command: CAP, Params: []string{CAP_END}})
}

// handleCHGHOST handles incoming IRCv3 hostname change events: a cleaner
// replacement for the QUIT+JOIN dance some services used historically.
func handleCHGHOST(c *Client, e *Event) {
	if len(e.Params) != 2 || e.Source == nil {
		return
	}

	if u, ok := c.state.LookupUser(e.Source.Name); ok {
		u.Ident = e.Params[0]
		u.Host = e.Params[1]
	}
}

// handleAWAY tracks IRCv3 away-notify events.
func handleAWAY(c *Client, e *Event) {
	if e.Source == nil {
		return
	}
	if u, ok := c.state.LookupUser(e.Source.Name); ok {
		u.IsAway = true
		u.AwayMessage = e.Trailing
		if e.Trailing == "" {
			u.IsAway = false
		}
	}
}

// handleACCOUNT handles incoming IRCv3 ACCOUNT events.
func handleACCOUNT(c *Client, e *Event) {
	if len(e.Params) != 1 || e.Source == nil {
		return
	}

	account := e.Params[0]
	if account == "*" {
		account = ""
	}

	if u, ok := c.state.LookupUser(e.Source.Name); ok {
		u.Account = account
	}
}

// handleTags applies message-tag metadata (e.g. "account") that affects
// tracked state, regardless of which command carried the tags.
func handleTags(c *Client, e *Event) {
	if len(e.Tags) == 0 || e.Source == nil {
		return
	}

	account, ok := e.Tags.Get("account")
	if !ok {
		return
	}

	if u, ok := c.state.LookupUser(e.Source.Name); ok {
		u.Account = account
	}
}

const (
	prefixTag      byte = 0x40 // @
	prefixTagValue byte = 0x3D // =
	prefixUserTag  byte = 0x2B // +
	tagSeparator   byte = 0x3B // ;
	maxTagLength   int  = 511  // 510 + @ and " " (space), though space usually not included.
)

// Tags represents the key-value pairs in IRCv3 message tags.
type Tags map[string]string

// ParseTags parses out the key-value map of tags. raw should only be the
// tag data, not a full message.
func ParseTags(raw string) (t Tags) {
	t = make(Tags)

	if len(raw) > 0 && raw[0] == prefixTag {
		raw = raw[1:]
	}

	parts := strings.Split(raw, string(tagSeparator))
	var hasValue int

	for i := 0; i < len(parts); i++ {
		hasValue = strings.IndexByte(parts[i], prefixTagValue)

		if hasValue < 1 || len(parts[i]) < hasValue+1 {
			if !validTag(parts[i]) {
				continue
			}
			t[parts[i]] = ""
			continue
		}

		if !validTag(parts[i][:hasValue]) || !validTagValue(tagDecoder.Replace(parts[i][hasValue+1:])) {
			continue
		}

		t[parts[i][:hasValue]] = parts[i][hasValue+1:]
	}

	return t
}

// Len determines the length of the bytes representation of this tag map,
// including the tag prefix ("@") but not the trailing separator space.
func (t Tags) Len() (length int) {
	return len(t.Bytes())
}

// Count finds how many total tags that there are.
func (t Tags) Count() int {
	return len(t)
}

// Bytes returns a []byte representation of this tag map, including the tag
// prefix ("@").
func (t Tags) Bytes() []byte {
	max := len(t)
	if max == 0 {
		return nil
	}

	buffer := new(bytes.Buffer)
	buffer.WriteByte(prefixTag)

	var current int

	for tagName, tagValue := range t {
		if (buffer.Len() + len(tagName) + len(tagValue) + 2) > maxTagLength {
			return buffer.Bytes()
		}

		buffer.WriteString(tagName)

		if len(tagValue) > 0 {
			buffer.WriteByte(prefixTagValue)
			buffer.WriteString(tagValue)
		}

		if current < max-1 {
			buffer.WriteByte(tagSeparator)
		}

		current++
	}

	return buffer.Bytes()
}

// String returns a string representation of this tag map.
func (t Tags) String() string {
	return string(t.Bytes())
}

// writeTo writes the necessary tag bytes to an io.Writer, including a
// trailing space-separator.
func (t Tags) writeTo(w io.Writer) (n int, err error) {
	b := t.Bytes()
	if len(b) == 0 {
		return n, err
	}

	n, err = w.Write(b)
	if err != nil {
		return n, err
	}

	var j int
	j, err = w.Write([]byte{eventSpace})
	n += j

	return n, err
}

var tagDecode = []string{
	"\\:", ";",
	"\\s", " ",
	"\\\\", "\\",
	"\\r", "\r",
	"\\n", "\n",
}
var tagDecoder = strings.NewReplacer(tagDecode...)

var tagEncode = []string{
	";", "\\:",
	" ", "\\s",
	"\\", "\\\\",
	"\r", "\\r",
	"\n", "\\n",
}
var tagEncoder = strings.NewReplacer(tagEncode...)

// Get returns the unescaped value of given tag key.
func (t Tags) Get(key string) (tag string, success bool) {
	if _, ok := t[key]; ok {
		tag = tagDecoder.Replace(t[key])
		success = true
	}

	return tag, success
}

// Set escapes given value and saves it as the value for given key.
func (t Tags) Set(key, value string) error {
	if !validTag(key) {
		return fmt.Errorf("tag %q is invalid", key)
	}

	value = tagEncoder.Replace(value)

	if !validTagValue(value) {
		return fmt.Errorf("tag value %q of key %q is invalid", value, key)
	}

	if (t.Len() + len(key) + len(value) + 2) > maxTagLength {
		return fmt.Errorf("unable to set tag %q [value %q]: tags too long for message", key, value)
	}

	t[key] = value

	return nil
}

// Remove deletes the tag from the tag map.
func (t Tags) Remove(key string) (success bool) {
	if _, success = t[key]; success {
		delete(t, key)
	}

	return success
}

// validTag validates an IRC tag name.
func validTag(name string) bool {
	if len(name) < 1 {
		return false
	}

	if len(name) >= 2 && name[0] == prefixUserTag {
		name = name[1:]
	}

	for i := 0; i < len(name); i++ {
		if (name[i] < 0x41 || name[i] > 0x5A) && (name[i] < 0x61 || name[i] > 0x7A) && (name[i] < 0x2D || name[i] > 0x39) && name[i] != 0x5F {
			return false
		}
	}

	return true
}

// validTagValue validates a decoded IRC tag value.
func validTagValue(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 0x21 || value[i] > 0x7E || value[i] == 0x3B {
			return false
		}
	}
	return true
}
