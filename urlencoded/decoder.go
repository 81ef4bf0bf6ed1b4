/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package urlencoded implements the resumable x-www-form-urlencoded
// decoder: a state machine fed by Offer(chunk, isLast) that yields
// completed attributes as they are recognised, backtracking to the last
// safe position whenever a chunk ends mid-field.
package urlencoded

import (
	"errors"

	"github.com/badu/formbody/buf"
	"github.com/badu/formbody/ferr"
	"github.com/badu/formbody/part"
	"github.com/badu/formbody/urlcodec"
)

type state int

const (
	stateNotStarted state = iota
	stateDisposition
	stateField
	statePreEpilogue
	stateEpilogue
)

// Decoder is a single-session, cooperatively-driven x-www-form-urlencoded
// parser: not safe for concurrent use, matching the single-threaded
// cooperative model every decoder in this module follows.
type Decoder struct {
	acc     *buf.Accumulator
	factory *part.Factory
	request any
	charset string

	state    state
	firstPos int
	name     string

	ready     []part.Part
	destroyed bool
}

// New returns a Decoder that creates attributes via factory, tracked
// under request, decoding percent-escapes with charset.
func New(factory *part.Factory, request any, charset string) *Decoder {
	if charset == "" {
		charset = "utf-8"
	}
	return &Decoder{
		acc:     buf.New(),
		factory: factory,
		request: request,
		charset: charset,
	}
}

// Offer appends chunk and advances the state machine as far as
// possible. isLast marks chunk as the final piece of the body.
func (d *Decoder) Offer(chunk []byte, isLast bool) error {
	if d.destroyed {
		return ferr.New(ferr.StateError, "Offer", nil)
	}
	d.acc.Append(chunk)
	return d.run(isLast)
}

// HasNext reports whether a completed part is waiting to be consumed.
func (d *Decoder) HasNext() bool {
	return len(d.ready) > 0
}

// Next dequeues the next completed part in wire order.
func (d *Decoder) Next() (part.Part, bool) {
	if len(d.ready) == 0 {
		return nil, false
	}
	p := d.ready[0]
	d.ready = d.ready[1:]
	return p, true
}

// Destroy marks the decoder terminal; any further Offer returns a state
// error, and Next reports no part.
func (d *Decoder) Destroy() {
	d.destroyed = true
	d.ready = nil
}

func (d *Decoder) run(isLast bool) error {
	for {
		progressed, err := d.step(isLast)
		if err != nil {
			if errors.Is(err, buf.ErrNotEnoughData) {
				if isLast {
					return d.finalize()
				}
				d.acc.Discard()
				return nil
			}
			return err
		}
		if !progressed {
			d.acc.Discard()
			return nil
		}
	}
}

// step advances the machine by exactly one token (a name, a value, or a
// transition), backtracking to the snapshot on not-enough-data per the
// shared backtracking contract.
func (d *Decoder) step(isLast bool) (bool, error) {
	snap := d.acc.Snapshot()

	switch d.state {
	case stateNotStarted:
		d.firstPos = d.acc.Cursor()
		d.state = stateDisposition
		return true, nil

	case stateDisposition:
		return d.scanDisposition(snap, isLast)

	case stateField:
		return d.scanField(snap, isLast)

	case statePreEpilogue:
		d.state = stateEpilogue
		return true, nil

	case stateEpilogue:
		// Trailing bytes after the body are ignored.
		d.acc.SetCursor(d.acc.Cursor() + d.acc.Len())
		return false, nil
	}
	return false, nil
}

// scanDisposition awaits '=' (start of a value) or '&' (an empty field).
func (d *Decoder) scanDisposition(snap int, isLast bool) (bool, error) {
	for {
		b, err := d.acc.ReadByte()
		if err != nil {
			if isLast {
				return d.finalizeNamelessField()
			}
			d.acc.Restore(snap)
			return false, err
		}
		switch b {
		case '=':
			raw, serr := d.acc.Slice(d.firstPos, d.acc.Cursor()-1)
			if serr != nil {
				d.acc.Restore(snap)
				return false, serr
			}
			name, derr := urlcodec.Unescape(string(raw), d.charset)
			if derr != nil {
				return false, ferr.New(ferr.EncodingError, "scanDisposition", derr)
			}
			d.name = name
			d.firstPos = d.acc.Cursor()
			d.state = stateField
			return true, nil
		case '&':
			name := ""
			if end := d.acc.Cursor() - 1; end > d.firstPos {
				raw, serr := d.acc.Slice(d.firstPos, end)
				if serr != nil {
					d.acc.Restore(snap)
					return false, serr
				}
				decoded, derr := urlcodec.Unescape(string(raw), d.charset)
				if derr != nil {
					return false, ferr.New(ferr.EncodingError, "scanDisposition", derr)
				}
				name = decoded
			}
			p, cerr := d.factory.CreateAttributeWithValue(d.request, name, "")
			if cerr != nil {
				return false, cerr
			}
			d.ready = append(d.ready, p)
			d.firstPos = d.acc.Cursor()
			return true, nil
		case '\r', '\n':
			// An empty body, or a disposition token with no '=' before
			// end-of-body: treat the accumulated bytes as a valueless
			// field name, per spec.md §4.D's "field created but no
			// content" finalisation rule.
			if d.acc.Cursor()-1 > d.firstPos {
				raw, serr := d.acc.Slice(d.firstPos, d.acc.Cursor()-1)
				if serr == nil && len(raw) > 0 {
					name, derr := urlcodec.Unescape(string(raw), d.charset)
					if derr == nil {
						p, cerr := d.factory.CreateAttributeWithValue(d.request, name, "")
						if cerr != nil {
							return false, cerr
						}
						d.ready = append(d.ready, p)
					}
				}
			}
			d.state = statePreEpilogue
			return true, nil
		}
	}
}

// scanField awaits '&' (end of value), CRLF or bare '\n' (end of body),
// decoding the buffered value region on either boundary.
func (d *Decoder) scanField(snap int, isLast bool) (bool, error) {
	for {
		b, err := d.acc.ReadByte()
		if err != nil {
			if isLast {
				return d.commitField(d.acc.Cursor())
			}
			d.acc.Restore(snap)
			return false, err
		}
		switch b {
		case '&':
			return d.commitField(d.acc.Cursor() - 1)
		case '\n':
			end := d.acc.Cursor() - 1
			if end > d.firstPos {
				if prev, perr := d.acc.PeekAt(end - 1); perr == nil && prev == '\r' {
					end--
				}
			}
			if _, err := d.commitField(end); err != nil {
				return false, err
			}
			d.state = statePreEpilogue
			return true, nil
		}
	}
}

func (d *Decoder) commitField(end int) (bool, error) {
	raw, err := d.acc.Slice(d.firstPos, end)
	if err != nil {
		return false, err
	}
	value, derr := urlcodec.Unescape(string(raw), d.charset)
	if derr != nil {
		return false, ferr.New(ferr.EncodingError, "commitField", derr)
	}
	p, cerr := d.factory.CreateAttributeWithValue(d.request, d.name, value)
	if cerr != nil {
		return false, cerr
	}
	d.ready = append(d.ready, p)
	d.firstPos = d.acc.Cursor()
	d.name = ""
	d.state = stateDisposition
	return true, nil
}

// finalize applies spec.md §4.D's last-chunk rule: a non-empty pending
// value region is committed; a part that was started but accumulated no
// content is finalised empty.
func (d *Decoder) finalize() error {
	switch d.state {
	case stateField:
		end := d.acc.Cursor()
		if end > d.firstPos {
			if _, err := d.commitField(end); err != nil {
				return err
			}
		} else {
			p, err := d.factory.CreateAttributeWithValue(d.request, d.name, "")
			if err != nil {
				return err
			}
			d.ready = append(d.ready, p)
		}
		d.state = stateEpilogue
	case stateDisposition:
		if _, err := d.finalizeNamelessField(); err != nil {
			return err
		}
		d.state = stateEpilogue
	}
	return nil
}

// finalizeNamelessField handles end-of-body while still scanning a name:
// whatever was buffered since firstPos becomes the field name of a
// part with an empty value (spec.md §4.D's "part created but no
// content" rule covers both an unterminated name and a wholly empty
// body the same way).
func (d *Decoder) finalizeNamelessField() (bool, error) {
	name := ""
	if end := d.acc.Cursor(); end > d.firstPos {
		raw, err := d.acc.Slice(d.firstPos, end)
		if err != nil {
			return false, err
		}
		decoded, derr := urlcodec.Unescape(string(raw), d.charset)
		if derr != nil {
			return false, ferr.New(ferr.EncodingError, "finalizeNamelessField", derr)
		}
		name = decoded
	} else {
		// Nothing buffered at all (empty body): no part to create.
		d.state = stateEpilogue
		return true, nil
	}
	p, cerr := d.factory.CreateAttributeWithValue(d.request, name, "")
	if cerr != nil {
		return false, cerr
	}
	d.ready = append(d.ready, p)
	d.state = stateEpilogue
	return true, nil
}
