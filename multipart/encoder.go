/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package multipart

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/badu/formbody/ferr"
	"github.com/badu/formbody/part"
	"github.com/badu/formbody/urlcodec"
)

// DefaultChunkSize is the default ceiling on a single NextChunk result.
const DefaultChunkSize = 8096

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	Charset   string
	Mode      urlcodec.Mode
	ChunkSize int
}

func (o EncoderOptions) withDefaults() EncoderOptions {
	if o.Charset == "" {
		o.Charset = "utf-8"
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// op is one step of an Encoder's precomputed emission plan: either a
// literal byte run (boundary lines, header blocks) or a part whose
// content is streamed through GetChunk as bytes are needed.
type op struct {
	literal []byte
	body    part.Part
}

// Encoder serialises an ordered list of parts back to wire bytes. The
// wire format is decided from the parts themselves: any FileUpload
// forces multipart/form-data (spec.md §4.F); otherwise the body is
// application/x-www-form-urlencoded (spec.md §4.F's URL-encoded
// branch). Since the full part list is known up front, mixed-group
// promotion is decided once during Finalize rather than by rewriting
// bytes already handed to a caller.
type Encoder struct {
	parts []part.Part
	opts  EncoderOptions

	isMultipart bool
	boundary    string
	contentType string

	ops            []op
	opIndex        int
	curPart        part.Part
	wroteDelimiter bool

	length    int64
	emitted   int64
	endSent   bool
	finalized bool
}

// NewEncoder returns an Encoder over parts.
func NewEncoder(parts []part.Part, opts EncoderOptions) *Encoder {
	opts = opts.withDefaults()
	e := &Encoder{parts: parts, opts: opts}
	for _, p := range parts {
		if _, ok := p.(*part.FileUpload); ok {
			e.isMultipart = true
			break
		}
	}
	return e
}

// Finalize computes the wire layout and returns the Content-Type header
// value the caller should set on the outgoing request. It must be
// called before the first NextChunk; calling it again is a no-op.
func (e *Encoder) Finalize() (string, error) {
	if e.finalized {
		return e.contentType, nil
	}
	if e.isMultipart {
		boundary, err := randomBoundary()
		if err != nil {
			return "", ferr.New(ferr.IOError, "Finalize", err)
		}
		e.boundary = boundary
		e.contentType = "multipart/form-data; boundary=" + e.boundary
		if err := e.buildMultipartPlan(); err != nil {
			return "", err
		}
	} else {
		e.contentType = "application/x-www-form-urlencoded"
		if err := e.buildURLEncodedPlan(); err != nil {
			return "", err
		}
	}
	for _, o := range e.ops {
		e.length += int64(len(o.literal))
		if o.body != nil {
			e.length += o.body.Size()
		}
	}
	e.finalized = true
	return e.contentType, nil
}

func randomBoundary() (string, error) {
	var buf [30]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf[:]), nil
}

func (e *Encoder) buildMultipartPlan() error {
	var b bytes.Buffer
	i := 0
	for i < len(e.parts) {
		p := e.parts[i]
		fu, isFile := p.(*part.FileUpload)
		if !isFile {
			a, ok := p.(*part.Attribute)
			if !ok {
				i++
				continue
			}
			e.writeOuterField(&b, a)
			i++
			continue
		}
		j := i + 1
		for j < len(e.parts) {
			nf, ok := e.parts[j].(*part.FileUpload)
			if !ok || nf.Name() != fu.Name() {
				break
			}
			j++
		}
		if j-i >= 2 && e.opts.Mode != urlcodec.ModeHTML5 {
			if err := e.writeMixedGroup(&b, e.parts[i:j]); err != nil {
				return err
			}
		} else {
			for _, p := range e.parts[i:j] {
				e.writeOuterFile(&b, p.(*part.FileUpload))
			}
		}
		i = j
	}
	fmt.Fprintf(&b, "\r\n--%s--\r\n", e.boundary)
	e.flushLiteral(&b)
	return nil
}

func (e *Encoder) flushLiteral(b *bytes.Buffer) {
	if b.Len() == 0 {
		return
	}
	e.ops = append(e.ops, op{literal: append([]byte(nil), b.Bytes()...)})
	b.Reset()
}

func (e *Encoder) appendPartBody(b *bytes.Buffer, p part.Part) {
	e.flushLiteral(b)
	e.ops = append(e.ops, op{body: p})
}

func (e *Encoder) writeDelimiter(b *bytes.Buffer) {
	if !e.wroteDelimiter {
		fmt.Fprintf(b, "--%s\r\n", e.boundary)
		e.wroteDelimiter = true
		return
	}
	fmt.Fprintf(b, "\r\n--%s\r\n", e.boundary)
}

func (e *Encoder) writeOuterField(b *bytes.Buffer, a *part.Attribute) {
	e.writeDelimiter(b)
	fmt.Fprintf(b, "Content-Disposition: form-data; name=\"%s\"\r\n\r\n", quoteEscaper.Replace(a.Name()))
	e.appendPartBody(b, a)
}

func (e *Encoder) writeOuterFile(b *bytes.Buffer, f *part.FileUpload) {
	e.writeDelimiter(b)
	fmt.Fprintf(b, "Content-Disposition: form-data; name=\"%s\"; filename=\"%s\"\r\n",
		quoteEscaper.Replace(f.Name()), quoteEscaper.Replace(f.FileName()))
	fmt.Fprintf(b, "Content-Type: %s\r\n\r\n", contentTypeOrDefault(f))
	e.appendPartBody(b, f)
}

// writeMixedGroup emits a run of two or more file uploads sharing a
// field name as one outer part declaring Content-Type: multipart/mixed,
// per spec.md §4.F's mixed-promotion rule. One inner boundary is freshly
// generated for the group and delimits every inner file.
func (e *Encoder) writeMixedGroup(b *bytes.Buffer, files []part.Part) error {
	fu0 := files[0].(*part.FileUpload)
	innerBoundary, err := randomBoundary()
	if err != nil {
		return ferr.New(ferr.IOError, "writeMixedGroup", err)
	}

	e.writeDelimiter(b)
	fmt.Fprintf(b, "Content-Disposition: form-data; name=\"%s\"\r\n", quoteEscaper.Replace(fu0.Name()))
	fmt.Fprintf(b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", innerBoundary)

	for i, p := range files {
		f := p.(*part.FileUpload)
		if i == 0 {
			fmt.Fprintf(b, "--%s\r\n", innerBoundary)
		} else {
			fmt.Fprintf(b, "\r\n--%s\r\n", innerBoundary)
		}
		fmt.Fprintf(b, "Content-Disposition: attachment; filename=\"%s\"\r\n", quoteEscaper.Replace(f.FileName()))
		fmt.Fprintf(b, "Content-Type: %s\r\n\r\n", contentTypeOrDefault(f))
		e.appendPartBody(b, f)
	}
	fmt.Fprintf(b, "\r\n--%s--\r\n", innerBoundary)
	return nil
}

func contentTypeOrDefault(f *part.FileUpload) string {
	if f.ContentType() == "" {
		return "application/octet-stream"
	}
	return f.ContentType()
}

// buildURLEncodedPlan percent-encodes every Attribute as "name=value",
// joined with '&', per spec.md §4.F's URL-encoded branch. FileUploads
// have no representation in this format and are skipped; callers
// requesting this branch are expected to have only Attributes.
func (e *Encoder) buildURLEncodedPlan() error {
	pairs := make([]string, 0, len(e.parts))
	for _, p := range e.parts {
		a, ok := p.(*part.Attribute)
		if !ok {
			continue
		}
		v, err := a.Value()
		if err != nil {
			return err
		}
		pairs = append(pairs, urlcodec.Escape(a.Name(), e.opts.Mode)+"="+urlcodec.Escape(v, e.opts.Mode))
	}
	e.ops = append(e.ops, op{literal: []byte(strings.Join(pairs, "&"))})
	return nil
}

// NextChunk returns the next slice of wire bytes, up to ChunkSize, or
// an empty slice with isEnd true once every part and framing byte has
// been emitted; every later call returns that same end marker.
func (e *Encoder) NextChunk() (chunk []byte, isEnd bool, err error) {
	if !e.finalized {
		return nil, false, ferr.New(ferr.StateError, "NextChunk", nil)
	}
	if e.endSent {
		return nil, true, nil
	}

	var buf bytes.Buffer
	for buf.Len() < e.opts.ChunkSize {
		if e.curPart != nil {
			remaining := e.opts.ChunkSize - buf.Len()
			got, gerr := e.curPart.GetChunk(remaining)
			if gerr != nil {
				return nil, false, gerr
			}
			if len(got) == 0 {
				e.curPart = nil
				e.opIndex++
				continue
			}
			buf.Write(got)
			continue
		}
		if e.opIndex >= len(e.ops) {
			break
		}
		o := e.ops[e.opIndex]
		if o.body != nil {
			e.curPart = o.body
			continue
		}
		if remaining := e.opts.ChunkSize - buf.Len(); len(o.literal) > remaining {
			// Emit what fits; the rest of the literal leads the next chunk.
			buf.Write(o.literal[:remaining])
			e.ops[e.opIndex].literal = o.literal[remaining:]
			continue
		}
		buf.Write(o.literal)
		e.opIndex++
	}

	if buf.Len() == 0 {
		e.endSent = true
		return nil, true, nil
	}
	e.emitted += int64(buf.Len())
	return buf.Bytes(), false, nil
}

// Length reports the total wire size computed at Finalize.
func (e *Encoder) Length() int64 { return e.length }

// Progress reports the fraction of Length emitted so far via NextChunk.
func (e *Encoder) Progress() float64 {
	if e.length == 0 {
		return 1
	}
	return float64(e.emitted) / float64(e.length)
}
