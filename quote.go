// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import "strings"

// Two independent quoting stages protect CTCP payloads from corrupting the
// line-oriented wire protocol they ride inside of. Low-level quoting
// escapes the bytes that would otherwise break line framing; CTCP quoting
// escapes the CTCP delimiter itself and the escape byte it introduces.
const (
	lowLevelQuoteByte byte = 0x10
	ctcpQuoteByte     byte = 0x5C // '\'
)

// lowLevelQuote escapes NUL, LF, CR and the escape byte itself so the
// result can never contain a line terminator.
func lowLevelQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0x00:
			b.WriteByte(lowLevelQuoteByte)
			b.WriteByte('0')
		case '\n':
			b.WriteByte(lowLevelQuoteByte)
			b.WriteByte('n')
		case '\r':
			b.WriteByte(lowLevelQuoteByte)
			b.WriteByte('r')
		case lowLevelQuoteByte:
			b.WriteByte(lowLevelQuoteByte)
			b.WriteByte(lowLevelQuoteByte)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// lowLevelDequote inverts lowLevelQuote. An escape byte followed by an
// unrecognized byte keeps the escaped byte literally, per spec.
func lowLevelDequote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != lowLevelQuoteByte || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case '0':
			b.WriteByte(0x00)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// ctcpQuote escapes the CTCP delimiter (0x01) and the escape byte itself.
func ctcpQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ctcpDelim:
			b.WriteByte(ctcpQuoteByte)
			b.WriteByte('a')
		case ctcpQuoteByte:
			b.WriteByte(ctcpQuoteByte)
			b.WriteByte(ctcpQuoteByte)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// ctcpDequote inverts ctcpQuote.
func ctcpDequote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ctcpQuoteByte || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'a':
			b.WriteByte(ctcpDelim)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
