/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package part implements the Part abstraction of spec.md §3/§4.C: the
// Attribute and FileUpload variants, their content store, reference
// counting, and the per-request factory/registry that creates and
// releases them.
package part

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/badu/formbody/store"
)

// ContentTransferEncoding enumerates the values spec.md §3 recognises
// for a FileUpload.
type ContentTransferEncoding int

const (
	SevenBit ContentTransferEncoding = iota
	EightBit
	Binary
)

func (c ContentTransferEncoding) String() string {
	switch c {
	case SevenBit:
		return "7bit"
	case EightBit:
		return "8bit"
	case Binary:
		return "binary"
	default:
		return "7bit"
	}
}

// ParseContentTransferEncoding maps a header value onto the enumeration,
// defaulting to SevenBit for anything unrecognised.
func ParseContentTransferEncoding(s string) ContentTransferEncoding {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "8bit":
		return EightBit
	case "binary":
		return Binary
	default:
		return SevenBit
	}
}

// NormalizeName strips leading/trailing whitespace and any \r, \t, \n
// bytes from a part name, per spec.md §3.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.ContainsAny(name, "\r\t\n") {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '\r', '\t', '\n':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Part is the common surface of Attribute and FileUpload: spec.md §3's
// abstract Part plus the reference-counted lifecycle of §4.B/§4.C.
type Part interface {
	Name() string
	Charset() string
	SetCharset(charset string)
	DefinedSize() int64
	Size() int64
	MaxSize() int64
	Completed() bool

	SetValue(p []byte) error
	AddContent(p []byte, last bool) error
	GetChunk(n int) ([]byte, error)
	GetBytes() ([]byte, error)
	GetString() (string, error)
	RenameTo(target string) error

	// HashCode is consistent with Equal, per invariant 5: two parts whose
	// normalised names match case-insensitively hash identically.
	HashCode() uint64
	Equal(other Part) bool

	Retain(n int64) int64
	Release(n int64) (int64, error)

	isPart()
}

// base carries the fields and behaviour spec.md §3 describes as common
// to both Part variants, embedded by Attribute and FileUpload.
type base struct {
	name    string
	charset string
	counted *store.Counted
}

func newBase(name, charset string, backing store.Store) base {
	if charset == "" {
		charset = "utf-8"
	}
	return base{
		name:    NormalizeName(name),
		charset: charset,
		counted: store.NewCounted(backing),
	}
}

func (b *base) Name() string    { return b.name }
func (b *base) Charset() string { return b.charset }
func (b *base) SetCharset(charset string) {
	if charset != "" {
		b.charset = charset
	}
}
func (b *base) DefinedSize() int64 { return 0 }
func (b *base) Size() int64        { return b.counted.Size() }
func (b *base) Completed() bool    { return b.counted.Completed() }

func (b *base) SetValue(p []byte) error               { return b.counted.SetContent(p) }
func (b *base) AddContent(p []byte, last bool) error   { return b.counted.AddContent(p, last) }
func (b *base) GetChunk(n int) ([]byte, error)         { return b.counted.GetChunk(n) }
func (b *base) GetBytes() ([]byte, error)              { return b.counted.GetBytes() }
func (b *base) GetString() (string, error)             { return b.counted.GetString(b.charset) }
func (b *base) RenameTo(target string) error           { return b.counted.RenameTo(target) }

func (b *base) Retain(n int64) int64           { return b.counted.Retain(n) }
func (b *base) Release(n int64) (int64, error) { return b.counted.Release(n) }

func (b *base) hashCode() uint64 {
	return xxhash.Sum64String(strings.ToLower(b.name))
}

func (b *base) equalName(other string) bool {
	return strings.EqualFold(b.name, other)
}

// Attribute is an unordered text field, compared case-insensitively by
// name per invariant 5.
type Attribute struct {
	base
	maxSize     int64
	definedSize int64
}

// NewAttribute creates an Attribute backed by the given Store.
func NewAttribute(name, charset string, definedSize, maxSize int64, backing store.Store) *Attribute {
	return &Attribute{base: newBase(name, charset, backing), maxSize: maxSize, definedSize: definedSize}
}

func (a *Attribute) MaxSize() int64     { return a.maxSize }
func (a *Attribute) DefinedSize() int64 { return a.definedSize }
func (a *Attribute) HashCode() uint64 { return a.hashCode() }
func (a *Attribute) Equal(other Part) bool {
	o, ok := other.(*Attribute)
	return ok && a.equalName(o.name)
}
func (*Attribute) isPart() {}

// Value is a convenience accessor returning the attribute's content as
// a charset-decoded string, matching the teacher's plain-field idiom.
func (a *Attribute) Value() (string, error) { return a.GetString() }

// FileUpload adds the file-specific metadata spec.md §3 names: file
// name, content type, and transfer encoding.
type FileUpload struct {
	base
	fileName    string
	contentType string
	cte         ContentTransferEncoding
	maxSize     int64
	definedSize int64
}

// NewFileUpload creates a FileUpload backed by the given Store.
func NewFileUpload(name, fileName, contentType string, cte ContentTransferEncoding, charset string, definedSize, maxSize int64, backing store.Store) *FileUpload {
	return &FileUpload{
		base:        newBase(name, charset, backing),
		fileName:    fileName,
		contentType: contentType,
		cte:         cte,
		maxSize:     maxSize,
		definedSize: definedSize,
	}
}

func (f *FileUpload) MaxSize() int64                         { return f.maxSize }
func (f *FileUpload) DefinedSize() int64                      { return f.definedSize }
func (f *FileUpload) FileName() string                        { return f.fileName }
func (f *FileUpload) SetFileName(name string)                 { f.fileName = NormalizeName(name) }
func (f *FileUpload) ContentType() string                     { return f.contentType }
func (f *FileUpload) SetContentType(ct string)                { f.contentType = ct }
func (f *FileUpload) ContentTransferEncoding() ContentTransferEncoding { return f.cte }
func (f *FileUpload) HashCode() uint64                        { return f.hashCode() }
func (f *FileUpload) Equal(other Part) bool {
	o, ok := other.(*FileUpload)
	return ok && f.equalName(o.name)
}
func (*FileUpload) isPart() {}
