/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package store implements the part content store — component B of
// spec.md: Memory, Disk, and the adaptive Mixed backing that migrates
// memory to disk once a size threshold is crossed — plus the reference
// counting and filesystem port that govern a part's lifetime.
package store

import (
	"github.com/badu/formbody/ferr"
	"github.com/badu/formbody/urlcodec"
)

// Store is the backing content of a single part. SetContent/AddContent
// enforce the size invariants from spec.md §3: size never exceeds
// MaxSize (when >= 0), and once Completed, size never exceeds a
// DefinedSize > 0. A violated invariant fails the call and leaves the
// store's bytes unchanged.
type Store interface {
	// SetContent replaces all content in one call and marks the store completed.
	SetContent(p []byte) error
	// AddContent appends p; if last, the store becomes completed.
	AddContent(p []byte, last bool) error
	// GetChunk returns up to n bytes from an internal read cursor,
	// advancing it. Returns an empty slice once drained, and that empty
	// read resets the cursor to the start, so a later call begins a new
	// read-out pass.
	GetChunk(n int) ([]byte, error)
	// GetBytes materialises the entire content.
	GetBytes() ([]byte, error)
	// GetString materialises the content decoded from charset into UTF-8.
	GetString(charset string) (string, error)
	// RenameTo streams all content to target. Disk-backed stores may
	// simply move the underlying file; memory-backed stores copy.
	RenameTo(target string) error
	// Size reports the current byte length of the content.
	Size() int64
	// Completed reports whether the terminal write has been observed.
	Completed() bool
	// Close releases any resources (temp files) held by the store. Safe
	// to call multiple times.
	Close() error
}

// limits is embedded by each concrete Store to share the size-invariant
// enforcement spec.md §3 requires of every mutator.
type limits struct {
	maxSize     int64 // -1 = unlimited
	definedSize int64 // 0 = unknown
	size        int64
	completed   bool
}

// checkWrite validates that writing n more bytes (bringing size to
// size+n) would not violate MaxSize, returning a SizeExceeded *ferr.Error
// if it would. It does not mutate state — callers only commit the write
// after this succeeds, per invariant 1's "leaves state unchanged" rule.
func (l *limits) checkWrite(op string, n int64) error {
	if l.maxSize >= 0 && l.size+n > l.maxSize {
		return ferr.New(ferr.SizeExceeded, op, nil)
	}
	return nil
}

// checkCompletion validates invariant 2: defined_size > 0 implies
// size <= defined_size once the store is marked completed. prospectiveSize
// is the size the terminal write would produce; like checkWrite, this does
// not mutate state — callers validate before committing the write and
// marking the store completed, per invariant 1's "leaves state unchanged"
// rule on failure.
func (l *limits) checkCompletion(op string, prospectiveSize int64) error {
	if l.definedSize > 0 && prospectiveSize > l.definedSize {
		return ferr.New(ferr.SizeExceeded, op, nil)
	}
	return nil
}

func (l *limits) Size() int64      { return l.size }
func (l *limits) Completed() bool  { return l.completed }

// decodeWith resolves a GetString(charset) request against already
// materialised bytes, via the shared percent-codec/charset port.
func decodeWith(raw []byte, charset string) (string, error) {
	dec, err := urlcodec.Decoder(charset)
	if err != nil {
		return "", ferr.New(ferr.EncodingError, "GetString", err)
	}
	if dec == nil {
		return string(raw), nil
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", ferr.New(ferr.EncodingError, "GetString", err)
	}
	return string(out), nil
}
