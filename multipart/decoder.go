/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package multipart implements the resumable multipart/form-data
// decoder and encoder: boundary extraction, a state machine fed by
// Offer(chunk, isLast), one level of nested multipart/mixed promotion,
// and the mirror-image lazy-chunked encoder.
package multipart

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/badu/formbody/buf"
	"github.com/badu/formbody/ferr"
	"github.com/badu/formbody/hdr"
	"github.com/badu/formbody/part"
)

type state int

const (
	stateNotStarted state = iota
	stateHeaderDelimiter
	stateDisposition
	stateBody
	stateMixedDelimiter
	stateMixedDisposition
	statePreEpilogue
	stateEpilogue
)

// Decoder is a single-session, cooperatively-driven multipart/form-data
// parser. Not safe for concurrent use.
type Decoder struct {
	acc     *buf.Accumulator
	factory *part.Factory
	request any
	charset string

	dashBoundary     []byte
	dashBoundaryDash []byte
	nl               []byte // "\r\n" or "\n"; nil until the first delimiter is seen

	mixedDashBoundary     []byte
	mixedDashBoundaryDash []byte
	inMixed               bool
	mixedName             string // outer field name, inherited by every inner mixed part

	state       state
	partsRead   int
	bodyInMixed bool
	curPart     part.Part

	ready     []part.Part
	destroyed bool
}

// New returns a Decoder recognising boundary, creating parts via
// factory tracked under request. charset ("utf-8" when empty) is given
// to each file upload whose Content-Transfer-Encoding is 8bit or binary;
// any other value, or no header at all, counts as 7bit and gives the
// file "us-ascii". Attributes do not use charset: they take the
// factory policy's charset.
func New(factory *part.Factory, request any, boundary, charset string) *Decoder {
	if charset == "" {
		charset = "utf-8"
	}
	return &Decoder{
		acc:              buf.New(),
		factory:          factory,
		request:          request,
		charset:          charset,
		dashBoundary:     []byte("--" + boundary),
		dashBoundaryDash: []byte("--" + boundary + "--"),
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
func (d *Decoder) HasNext() bool { return len(d.ready) > 0 }

// Next dequeues the next completed part in wire order.
func (d *Decoder) Next() (part.Part, bool) {
	if len(d.ready) == 0 {
		return nil, false
	}
	p := d.ready[0]
	d.ready = d.ready[1:]
	return p, true
}

// CurrentPartialPart returns the part currently receiving body bytes,
// if any (it has not yet been finalised and so is not in Next's queue).
func (d *Decoder) CurrentPartialPart() (part.Part, bool) {
	if d.curPart == nil {
		return nil, false
	}
	return d.curPart, true
}

// Destroy marks the decoder terminal.
func (d *Decoder) Destroy() {
	d.destroyed = true
	d.ready = nil
	d.curPart = nil
}

func (d *Decoder) run(isLast bool) error {
	for {
		progressed, err := d.step(isLast)
		if err != nil {
			if errIsNotEnoughData(err) {
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

func errIsNotEnoughData(err error) bool {
	return errors.Is(err, buf.ErrNotEnoughData)
}

func (d *Decoder) step(isLast bool) (bool, error) {
	switch d.state {
	case stateNotStarted:
		d.state = stateHeaderDelimiter
		return true, nil
	case stateHeaderDelimiter:
		return d.scanDelimiter(false, isLast)
	case stateDisposition:
		return d.scanDisposition(false, isLast)
	case stateBody:
		return d.scanBody(isLast)
	case stateMixedDelimiter:
		return d.scanDelimiter(true, isLast)
	case stateMixedDisposition:
		return d.scanDisposition(true, isLast)
	case statePreEpilogue:
		d.state = stateEpilogue
		return true, nil
	case stateEpilogue:
		d.acc.SetCursor(d.acc.Cursor() + d.acc.Len())
		return false, nil
	}
	return false, nil
}

// scanDelimiter recognises a boundary delimiter line at the cursor: a
// close delimiter ("--BOUND--"), a next-part delimiter ("--BOUND"), or
// (only before the first boundary of the outer group) a preamble line
// to be skipped. A lone '\n' is tolerated as the line terminator.
func (d *Decoder) scanDelimiter(mixed bool, isLast bool) (bool, error) {
	snap := d.acc.Snapshot()

	db, dbd := d.dashBoundary, d.dashBoundaryDash
	if mixed {
		db, dbd = d.mixedDashBoundary, d.mixedDashBoundaryDash
	}

	nlPos := d.acc.Index([]byte{'\n'})
	if nlPos < 0 {
		if isLast {
			return false, ferr.New(ferr.FormatError, "scanDelimiter", nil)
		}
		return false, buf.ErrNotEnoughData
	}

	line, err := d.acc.Slice(d.acc.Cursor(), nlPos+1)
	if err != nil {
		d.acc.Restore(snap)
		return false, err
	}

	isClose := bytes.HasPrefix(line, dbd)
	prefix := dbd
	if !isClose {
		if !bytes.HasPrefix(line, db) {
			if !mixed && d.partsRead == 0 {
				// Preamble text before the first boundary is skipped,
				// matching the teacher's NextPart "skip line" behaviour
				// when no part has been read yet.
				d.acc.SetCursor(nlPos + 1)
				return true, nil
			}
			d.acc.Restore(snap)
			return false, ferr.New(ferr.FormatError, "scanDelimiter", nil)
		}
		prefix = db
	}

	// Everything between the matched prefix and the line terminator
	// must be linear whitespace only (RFC 2046 §5.1's "optional linear
	// whitespace"); anything else means this wasn't really a delimiter.
	rest := skipLWSP(line[len(prefix) : len(line)-1])
	if len(rest) != 0 && !(len(rest) == 1 && rest[0] == '\r') {
		d.acc.Restore(snap)
		return false, ferr.New(ferr.FormatError, "scanDelimiter", nil)
	}

	if d.nl == nil {
		d.nl = detectLineEnding(line)
	}

	d.acc.SetCursor(nlPos + 1)

	if isClose {
		if mixed {
			d.inMixed = false
			d.state = stateHeaderDelimiter
		} else {
			d.state = statePreEpilogue
		}
		return true, nil
	}

	d.partsRead++
	if mixed {
		d.state = stateMixedDisposition
	} else {
		d.state = stateDisposition
	}
	return true, nil
}

// skipLWSP strips leading spaces and tabs, per RFC 822's LWSP-char.
func skipLWSP(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func detectLineEnding(line []byte) []byte {
	if len(line) >= 2 && line[len(line)-2] == '\r' {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// scanDisposition reads the header block for the part just introduced
// by its delimiter line, then creates the corresponding Part (or, for
// an outer part declaring Content-Type: multipart/mixed, promotes into
// the nested mixed sub-state).
func (d *Decoder) scanDisposition(mixed bool, isLast bool) (bool, error) {
	snap := d.acc.Snapshot()
	h, err := d.readHeaderBlock(snap)
	if err != nil {
		return false, err
	}

	cd := h.Get(hdr.ContentDisposition)
	_, params := hdr.SplitParameters(cd, true)

	var name, filename string
	var filenameStar bool
	for _, p := range params {
		k, v, ok := hdr.ParseParameter(p)
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "name":
			name = v
		case "filename":
			if !filenameStar {
				filename = v
			}
		case "filename*":
			if ev, everr := hdr.ParseExtendedValue(v); everr == nil {
				filename = ev.Value
				filenameStar = true
			}
		}
	}

	ct := h.Get(hdr.ContentType)
	ctToken, ctParams := hdr.SplitParameters(ct, true)

	if !mixed && strings.HasPrefix(strings.ToLower(ctToken), "multipart/mixed") {
		if d.inMixed {
			return false, ferr.New(ferr.FormatError, "scanDisposition", nil)
		}
		boundary := ""
		for _, p := range ctParams {
			k, v, ok := hdr.ParseParameter(p)
			if ok && strings.EqualFold(k, "boundary") {
				boundary = v
			}
		}
		if boundary == "" {
			return false, ferr.New(ferr.FormatError, "scanDisposition", nil)
		}
		d.mixedDashBoundary = []byte("--" + boundary)
		d.mixedDashBoundaryDash = []byte("--" + boundary + "--")
		d.mixedName = name
		d.inMixed = true
		d.state = stateMixedDelimiter
		return true, nil
	}

	if mixed {
		if filename == "" {
			return false, ferr.New(ferr.FormatError, "scanDisposition", nil)
		}
		name = d.mixedName
	}

	cte := part.ParseContentTransferEncoding(h.Get(hdr.ContentTransferEncoding))
	charset := d.charset
	if cte == part.SevenBit {
		charset = "us-ascii"
	}
	definedSize := parseContentLengthBestEffort(h.Get(hdr.ContentLength))

	if filename != "" {
		d.curPart = d.factory.CreateFileUpload(d.request, name, filename, ct, cte, charset, definedSize)
	} else {
		d.curPart = d.factory.CreateAttribute(d.request, name, definedSize)
	}

	d.bodyInMixed = mixed
	d.state = stateBody
	return true, nil
}

func parseContentLengthBestEffort(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// readHeaderBlock reads "Key: Value" lines until a blank line,
// returning the accumulated header set. The whole block is one
// backtracking unit: on not-enough-data the cursor is restored to
// snap and no header is retained.
func (d *Decoder) readHeaderBlock(snap int) (hdr.Header, error) {
	h := hdr.Header{}
	for {
		nlPos := d.acc.Index([]byte{'\n'})
		if nlPos < 0 {
			d.acc.Restore(snap)
			return nil, buf.ErrNotEnoughData
		}
		line, err := d.acc.Slice(d.acc.Cursor(), nlPos+1)
		if err != nil {
			d.acc.Restore(snap)
			return nil, err
		}
		trimmed := trimLineEnding(line)
		d.acc.SetCursor(nlPos + 1)
		if len(trimmed) == 0 {
			return h, nil
		}
		idx := bytes.IndexByte(trimmed, ':')
		if idx < 0 {
			d.acc.Restore(snap)
			return nil, ferr.New(ferr.FormatError, "readHeaderBlock", nil)
		}
		key := strings.TrimSpace(string(trimmed[:idx]))
		val := strings.TrimSpace(string(trimmed[idx+1:]))
		h.Add(key, val)
	}
}

func trimLineEnding(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line
}

// scanBody implements LoadDataMultipart: scan forward for "\n--BOUND"
// (the delimiter's preceding newline plus its dash-boundary prefix).
// Bytes up to that point are appended to the current part. When no
// delimiter is found yet, only bytes that cannot possibly be the start
// of a partial match are committed (the resolved partial-commit
// boundary policy), and the scan resumes on the next Offer.
func (d *Decoder) scanBody(isLast bool) (bool, error) {
	nl := d.nl
	if nl == nil {
		nl = []byte("\r\n")
	}
	db := d.dashBoundary
	if d.bodyInMixed {
		db = d.mixedDashBoundary
	}
	needle := append(append([]byte{}, nl...), db...)

	if idx := d.acc.Index(needle); idx >= 0 {
		raw, err := d.acc.Slice(d.acc.Cursor(), idx)
		if err != nil {
			return false, err
		}
		if err := d.curPart.AddContent(raw, true); err != nil {
			return false, err
		}
		d.acc.SetCursor(idx + len(nl))
		d.ready = append(d.ready, d.curPart)
		d.curPart = nil
		if d.bodyInMixed {
			d.state = stateMixedDelimiter
		} else {
			d.state = stateHeaderDelimiter
		}
		return true, nil
	}

	avail := d.acc.Len()
	window := len(needle) - 1
	if avail > window {
		committed := avail - window
		raw, err := d.acc.Slice(d.acc.Cursor(), d.acc.Cursor()+committed)
		if err != nil {
			return false, err
		}
		if err := d.curPart.AddContent(raw, false); err != nil {
			return false, err
		}
		d.acc.SetCursor(d.acc.Cursor() + committed)
		return true, nil
	}

	if isLast {
		return false, ferr.New(ferr.FormatError, "scanBody", nil)
	}
	return false, buf.ErrNotEnoughData
}
