/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package formbody is the codec's dispatcher: it inspects a request's
// Content-Type and routes to the multipart or urlencoded decoder behind
// one uniform surface, per spec.md §4.G.
package formbody

import (
	"strings"

	"github.com/badu/formbody/multipart"
	"github.com/badu/formbody/part"
	"github.com/badu/formbody/urlencoded"
)

// innerDecoder is the surface both wire-format decoders already
// implement; Decoder composes one of them.
type innerDecoder interface {
	Offer(chunk []byte, isLast bool) error
	HasNext() bool
	Next() (part.Part, bool)
	Destroy()
}

// Decoder routes Offer'd bytes to the multipart or urlencoded decoder
// selected at construction time, and additionally tracks every part
// produced so far for GetByName/GetAll lookups.
type Decoder struct {
	factory *part.Factory
	request any

	inner   innerDecoder
	multi   *multipart.Decoder
	isMulti bool

	queue []part.Part
	all   []part.Part
}

// New inspects contentType and returns a Decoder. multipart/form-data
// with a parseable boundary selects the multipart decoder; anything
// else (including an unparseable boundary) falls back to the
// urlencoded decoder, per spec.md §4.G.
func New(factory *part.Factory, request any, contentType string) *Decoder {
	info := multipart.ParseContentType(contentType)
	d := &Decoder{factory: factory, request: request}
	if info.IsMultipartFormData() {
		d.multi = multipart.New(factory, request, info.Boundary, info.Charset)
		d.inner = d.multi
		d.isMulti = true
		return d
	}
	d.inner = urlencoded.New(factory, request, info.Charset)
	return d
}

// Offer appends chunk to the selected decoder and drains any parts it
// completed into this Decoder's own queue and running part list.
func (d *Decoder) Offer(chunk []byte, isLast bool) error {
	err := d.inner.Offer(chunk, isLast)
	for d.inner.HasNext() {
		p, ok := d.inner.Next()
		if !ok {
			break
		}
		d.queue = append(d.queue, p)
		d.all = append(d.all, p)
	}
	return err
}

// HasNext reports whether a completed part is waiting to be consumed.
func (d *Decoder) HasNext() bool { return len(d.queue) > 0 }

// Next dequeues the next completed part in wire order.
func (d *Decoder) Next() (part.Part, bool) {
	if len(d.queue) == 0 {
		return nil, false
	}
	p := d.queue[0]
	d.queue = d.queue[1:]
	return p, true
}

// CurrentPartialPart returns the part currently receiving body bytes,
// if any. Only the multipart decoder has a notion of a partial part in
// flight; the urlencoded decoder always reports none.
func (d *Decoder) CurrentPartialPart() (part.Part, bool) {
	if d.isMulti {
		return d.multi.CurrentPartialPart()
	}
	return nil, false
}

// GetByName returns the first part seen so far (across every Offer
// call) whose name matches name case-insensitively.
func (d *Decoder) GetByName(name string) (part.Part, bool) {
	for _, p := range d.all {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// GetAll returns every part seen so far whose name matches name
// case-insensitively, in the order they were produced.
func (d *Decoder) GetAll(name string) []part.Part {
	var out []part.Part
	for _, p := range d.all {
		if strings.EqualFold(p.Name(), name) {
			out = append(out, p)
		}
	}
	return out
}

// Destroy marks the underlying decoder terminal.
func (d *Decoder) Destroy() {
	d.inner.Destroy()
	d.queue = nil
}

// CleanFiles releases every part this Decoder's factory created for
// its request, per the factory's CleanRequest.
func (d *Decoder) CleanFiles() error {
	return d.factory.CleanRequest(d.request)
}
