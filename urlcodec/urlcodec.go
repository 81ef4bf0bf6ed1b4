/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package urlcodec is the percent-codec port the decoder and encoder
// consume: RFC 1738/3986/HTML5 percent-encoding and charset-aware
// percent-decoding of x-www-form-urlencoded components.
//
// It is adapted from the teacher's url package (QueryEscape/QueryUnescape
// in url/public.go), generalized from a single fixed encoding into the
// three named modes this codec's wire format requires, and extended with
// charset resolution for percent-decoding via golang.org/x/text.
package urlcodec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Mode selects the percent-encoding dialect used by the urlencoded
// encoder branch and, where noted, the decoder's '+' handling.
type Mode int

const (
	// ModeRFC1738 is the default: '+' encodes space, everything outside
	// the unreserved set is percent-encoded.
	ModeRFC1738 Mode = iota
	// ModeRFC3986 additionally substitutes '*'->"%2A", '+'->"%20", '~'->"%7E".
	ModeRFC3986
	// ModeHTML5 encodes identically to ModeRFC1738; selecting it at the
	// encoder additionally disables multipart mixed-mode promotion.
	ModeHTML5
)

// EscapeError is returned when an invalid percent-escape sequence is
// encountered while decoding.
type EscapeError string

func (e EscapeError) Error() string {
	return "urlcodec: invalid URL escape " + string(e)
}

// Escape percent-encodes s for use as an x-www-form-urlencoded
// name or value, per the given Mode.
func Escape(s string, mode Mode) string {
	spaceCount, hexCount := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c, mode) {
			if c == ' ' {
				spaceCount++
			} else {
				hexCount++
			}
		}
	}

	if spaceCount == 0 && hexCount == 0 {
		return s
	}

	var buf strings.Builder
	buf.Grow(len(s) + 2*hexCount)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ' ':
			buf.WriteByte('+')
		case c == '+' && mode == ModeRFC3986:
			buf.WriteString("%20")
		case shouldEscape(c, mode):
			buf.WriteByte('%')
			buf.WriteByte(upperhex[c>>4])
			buf.WriteByte(upperhex[c&15])
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether c must be percent-encoded in the given mode.
func shouldEscape(c byte, mode Mode) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.':
		return false
	case '*':
		return mode == ModeRFC3986
	case '~':
		return mode == ModeRFC3986
	case ' ':
		return true // becomes '+'
	}
	return true
}

// Unescape converts each %XX escape in s to the byte it represents and
// '+' to ' ', then decodes the resulting bytes from charset into UTF-8.
// An empty or "utf-8"/"us-ascii" charset skips the transcoding step.
func Unescape(s, charset string) (string, error) {
	raw, err := unescapePercent(s)
	if err != nil {
		return "", err
	}
	return decodeCharset(raw, charset)
}

// unescapePercent performs the %XX / '+' substitution without any
// charset transcoding.
func unescapePercent(s string) (string, error) {
	n := 0
	hasPlus := false
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			n++
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				e := s[i:]
				if len(e) > 3 {
					e = e[:3]
				}
				return "", EscapeError(e)
			}
			i += 3
		case '+':
			hasPlus = true
			i++
		default:
			i++
		}
	}

	if n == 0 && !hasPlus {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case '+':
			b.WriteByte(' ')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// decodeCharset transcodes raw bytes, assumed to be encoded per charset,
// into a UTF-8 Go string. Charsets other than UTF-8/ASCII are resolved
// through golang.org/x/text/encoding/htmlindex.
func decodeCharset(raw, charset string) (string, error) {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "utf8" || cs == "us-ascii" || cs == "ascii" {
		return raw, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return "", fmt.Errorf("urlcodec: unknown charset %q: %w", charset, err)
	}
	out, err := enc.NewDecoder().String(raw)
	if err != nil {
		return "", fmt.Errorf("urlcodec: charset %q decode failed: %w", charset, err)
	}
	return out, nil
}

// UnescapePath converts each %XX escape in s to the byte it represents,
// WITHOUT treating '+' specially (unlike Unescape), then decodes the
// resulting bytes from charset. This matches RFC 5987/8187 extended
// parameter encoding, which has no '+'-means-space convention.
func UnescapePath(s, charset string) (string, error) {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == '%' {
			n++
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				e := s[i:]
				if len(e) > 3 {
					e = e[:3]
				}
				return "", EscapeError(e)
			}
			i += 3
			continue
		}
		i++
	}
	if n == 0 {
		return decodeCharset(s, charset)
	}
	var b strings.Builder
	b.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return decodeCharset(b.String(), charset)
}

// Decoder resolves a named charset to a reusable x/text decoder, for
// callers (e.g. store.GetString) that decode many chunks under one charset.
func Decoder(charset string) (*encoding.Decoder, error) {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "utf8" || cs == "us-ascii" || cs == "ascii" {
		return nil, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, fmt.Errorf("urlcodec: unknown charset %q: %w", charset, err)
	}
	return enc.NewDecoder(), nil
}
