// Copyright 2016 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package ircore

import "strings"

type color struct {
	aliases []string
	// code is the two-character numeric mIRC color code, set only for
	// entries that represent an actual color (as opposed to a toggle like
	// bold/italic/reset).
	code string
	val  string
}

var colors = []*color{
	{aliases: []string{"white"}, code: "00", val: "\x0300"},
	{aliases: []string{"black"}, code: "01", val: "\x0301"},
	{aliases: []string{"blue", "navy"}, code: "02", val: "\x0302"},
	{aliases: []string{"green"}, code: "03", val: "\x0303"},
	{aliases: []string{"red"}, code: "04", val: "\x0304"},
	{aliases: []string{"brown", "maroon"}, code: "05", val: "\x0305"},
	{aliases: []string{"purple"}, code: "06", val: "\x0306"},
	{aliases: []string{"orange", "olive", "gold"}, code: "07", val: "\x0307"},
	{aliases: []string{"yellow"}, code: "08", val: "\x0308"},
	{aliases: []string{"lightgreen", "lime"}, code: "09", val: "\x0309"},
	{aliases: []string{"teal"}, code: "10", val: "\x0310"},
	{aliases: []string{"cyan"}, code: "11", val: "\x0311"},
	{aliases: []string{"lightblue", "royal"}, code: "12", val: "\x0312"},
	{aliases: []string{"lightpurple", "pink", "fuchsia"}, code: "13", val: "\x0313"},
	{aliases: []string{"grey", "gray"}, code: "14", val: "\x0314"},
	{aliases: []string{"lightgrey", "silver"}, code: "15", val: "\x0315"},
	{aliases: []string{"bold", "b"}, val: "\x02"},
	{aliases: []string{"italic", "i"}, val: "\x1d"},
	{aliases: []string{"reset", "r"}, val: "\x0f"},
	{aliases: []string{"clear", "c"}, val: "\x03"},
	{aliases: []string{"reverse"}, val: "\x16"},
	{aliases: []string{"underline", "ul"}, val: "\x1f"},
}

func colorByAlias(name string) *color {
	for _, c := range colors {
		for _, a := range c.aliases {
			if a == name {
				return c
			}
		}
	}
	return nil
}

// scanBrace looks for the "}" closing the placeholder opened at text[open],
// returning its index. A second "{" encountered before any "}" means the
// opening brace at text[open] doesn't start a valid placeholder.
func scanBrace(text string, open int) (end int, ok bool) {
	for j := open + 1; j < len(text); j++ {
		switch text[j] {
		case '}':
			return j, true
		case '{':
			return 0, false
		}
	}
	return 0, false
}

// Format takes color/format placeholders like "{red}" or "{red,yellow}"
// (foreground, background) and turns them into the resulting ASCII escape
// sequence for IRC. Unrecognized placeholders are left untouched.
func Format(text string) string {
	return Fmt(text)
}

// Fmt takes color strings like "{red}" and "{red,yellow}" and turns them
// into the resulting ASCII color code for IRC.
func Fmt(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != '{' {
			b.WriteByte(text[i])
			i++
			continue
		}

		end, ok := scanBrace(text, i)
		if !ok {
			b.WriteByte(text[i])
			i++
			continue
		}

		inside := text[i+1 : end]
		fg, bg, hasComma := inside, "", false
		if idx := strings.IndexByte(inside, ','); idx >= 0 {
			fg, bg, hasComma = inside[:idx], inside[idx+1:], true
		}

		if fg == "" {
			// Background-only placeholders have no sensible standalone
			// encoding; drop them.
			i = end + 1
			continue
		}

		fgColor := colorByAlias(fg)
		if fgColor == nil {
			b.WriteString(text[i : end+1])
			i = end + 1
			continue
		}

		if fgColor.code == "" || !hasComma {
			b.WriteString(fgColor.val)
			i = end + 1
			continue
		}

		bgColor := colorByAlias(bg)
		if bgColor == nil || bgColor.code == "" {
			b.WriteString(fgColor.val)
			i = end + 1
			continue
		}

		b.WriteByte(0x03)
		b.WriteString(fgColor.code)
		b.WriteByte(',')
		b.WriteString(bgColor.code)
		i = end + 1
	}

	return b.String()
}

// StripFormat strips all "{color}" formatting strings from the input text.
// See Fmt() for more information.
func StripFormat(text string) string {
	return TrimFmt(text)
}

// TrimFmt strips all "{color}" placeholder strings from the input text,
// regardless of whether the name inside is recognized.
func TrimFmt(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != '{' {
			b.WriteByte(text[i])
			i++
			continue
		}

		end, ok := scanBrace(text, i)
		if !ok {
			b.WriteByte(text[i])
			i++
			continue
		}
		i = end + 1
	}

	return b.String()
}

// StripColors tries to strip all ASCII color codes that are used for IRC.
func StripColors(text string) string {
	return StripRaw(text)
}

// StripRaw strips mIRC-style color/format control bytes (\x02, \x03 plus
// its optional digit/comma-digit color suffix, \x0f, \x16, \x1d, \x1f) from
// already-rendered text, suitable for sanitizing output before logging it.
func StripRaw(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case 0x02, 0x0f, 0x16, 0x1d, 0x1f, '\r', '\n':
			continue
		case 0x03:
			i++
			n := 0
			for n < 2 && i < len(text) && isDigit(text[i]) {
				i++
				n++
			}
			if n > 0 && i < len(text) && text[i] == ',' {
				j, m := i+1, 0
				for m < 2 && j < len(text) && isDigit(text[j]) {
					j++
					m++
				}
				if m > 0 {
					i = j
				}
			}
			i--
			continue
		default:
			b.WriteByte(text[i])
		}
	}

	return b.String()
}

// Glob reports whether subj matches pattern, where pattern may contain '*'
// wildcards matching any run of characters (including none).
func Glob(subj, pattern string) bool {
	if pattern == "" {
		return subj == pattern
	}
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return subj == pattern
	}

	leadingGlob := strings.HasPrefix(pattern, "*")
	trailingGlob := strings.HasSuffix(pattern, "*")
	end := len(parts) - 1

	for i, part := range parts {
		if part == "" {
			continue
		}

		idx := strings.Index(subj, part)
		if idx < 0 || (i == 0 && !leadingGlob && idx != 0) {
			return false
		}

		if i == end && !trailingGlob && len(subj) != idx+len(part) {
			return false
		}

		subj = subj[idx+len(part):]
	}

	return true
}
