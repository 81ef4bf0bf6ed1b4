/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr carries the header-value surface the codec needs: a
// canonical key/value map plus the quote-aware parameter splitting and
// RFC 5987 decoding that multipart disposition parsing depends on.
//
// Full HTTP header framing (request-line parsing, reading a header block
// off a connection) is out of scope here — it belongs to the transport
// collaborator this module consumes, not to it.
package hdr

// Header represents the key-value pairs of a header line's worth of
// values, e.g. Content-Disposition or Content-Type. Keys are stored in
// CanonicalHeaderKey form.
type Header map[string][]string

// Names of the few headers the codec itself inspects.
const (
	ContentDisposition     = "Content-Disposition"
	ContentType             = "Content-Type"
	ContentTransferEncoding = "Content-Transfer-Encoding"
	ContentLength           = "Content-Length"
)

// Add adds the key, value pair to the header. It appends to any existing
// values associated with key.
func (h Header) Add(key, value string) {
	key = CanonicalHeaderKey(key)
	h[key] = append(h[key], value)
}

// Set sets the header entries associated with key to the single element
// value, replacing any existing values.
func (h Header) Set(key, value string) {
	h[CanonicalHeaderKey(key)] = []string{value}
}

// Get returns the first value associated with the given key, or "" if
// there is none. The key is canonicalized before lookup.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	v := h[CanonicalHeaderKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Del deletes the values associated with key.
func (h Header) Del(key string) {
	delete(h, CanonicalHeaderKey(key))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	h2 := make(Header, len(h))
	for k, vv := range h {
		vv2 := make([]string, len(vv))
		copy(vv2, vv)
		h2[k] = vv2
	}
	return h2
}
