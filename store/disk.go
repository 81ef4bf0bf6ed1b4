/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package store

import (
	"os"

	"github.com/badu/formbody/ferr"
)

// Disk streams content through a temp file opened on first write.
// GetChunk reads sequentially via an offset into that file. Close marks
// the file for removal (spec.md §4.B: "Deletion marks the file for
// unlink on release").
//
// Grounded directly on the teacher's disk-spill path in
// mime/multipart_reader.go (ioutil.TempFile + io.Copy), generalized from
// a one-shot bulk copy into the incremental AddContent/GetChunk protocol
// this spec's resumable decoder needs.
type Disk struct {
	limits
	kind     FileKind
	file     TempFile
	readOff  int64
	unlinked bool
}

// NewDisk returns an empty Disk store. The backing temp file is created
// lazily on the first write.
func NewDisk(kind FileKind, maxSize, definedSize int64) *Disk {
	return &Disk{limits: limits{maxSize: maxSize, definedSize: definedSize}, kind: kind}
}

func (d *Disk) ensureFile() error {
	if d.file != nil {
		return nil
	}
	f, err := createTemp(d.kind)
	if err != nil {
		return ferr.New(ferr.IOError, "Disk.write", err)
	}
	d.file = f
	return nil
}

func (d *Disk) SetContent(p []byte) error {
	if err := d.limits.checkWrite("SetContent", int64(len(p))-d.size); err != nil {
		return err
	}
	if err := d.limits.checkCompletion("SetContent", int64(len(p))); err != nil {
		return err
	}
	if d.file != nil {
		// Replace rather than append: drop the previous temp file first.
		if err := d.Close(); err != nil {
			return err
		}
		d.file = nil
		d.unlinked = false
	}
	d.readOff = 0
	if err := d.ensureFile(); err != nil {
		return err
	}
	if _, err := d.file.Write(p); err != nil {
		return ferr.New(ferr.IOError, "SetContent", err)
	}
	d.size = int64(len(p))
	d.completed = true
	return nil
}

func (d *Disk) AddContent(p []byte, last bool) error {
	if err := d.limits.checkWrite("AddContent", int64(len(p))); err != nil {
		return err
	}
	if last {
		if err := d.limits.checkCompletion("AddContent", d.size+int64(len(p))); err != nil {
			return err
		}
	}
	if len(p) > 0 {
		if err := d.ensureFile(); err != nil {
			return err
		}
		if _, err := d.file.Write(p); err != nil {
			return ferr.New(ferr.IOError, "AddContent", err)
		}
		d.size += int64(len(p))
	}
	if last {
		d.completed = true
	}
	return nil
}

func (d *Disk) GetChunk(n int) ([]byte, error) {
	if n <= 0 || d.file == nil {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := d.file.ReadAt(buf, d.readOff)
	if read > 0 {
		d.readOff += int64(read)
	}
	if err != nil && read == 0 {
		d.readOff = 0 // drained: reset for any subsequent read-out pass
		return nil, nil
	}
	return buf[:read], nil
}

func (d *Disk) GetBytes() ([]byte, error) {
	if d.file == nil {
		return nil, nil
	}
	out := make([]byte, d.size)
	var off int64
	for off < d.size {
		n, err := d.file.ReadAt(out[off:], off)
		off += int64(n)
		if n == 0 && err != nil {
			break
		}
	}
	return out[:off], nil
}

func (d *Disk) GetString(charset string) (string, error) {
	raw, err := d.GetBytes()
	if err != nil {
		return "", err
	}
	return decodeWith(raw, charset)
}

// RenameTo moves the backing temp file to target. Disk-backed content is
// allowed to move rather than copy, per spec.md §4.B.
func (d *Disk) RenameTo(target string) error {
	if d.file == nil {
		return writeWholeFile(target, nil)
	}
	name := d.file.Name()
	if err := d.file.Close(); err != nil {
		return ferr.New(ferr.IOError, "RenameTo", err)
	}
	globalConfig.mu.RLock()
	fs := globalConfig.fs
	globalConfig.mu.RUnlock()
	forgetTemp(name)
	if err := fs.Rename(name, target); err != nil {
		return ferr.New(ferr.IOError, "RenameTo", err)
	}
	d.file = nil
	d.unlinked = true
	return nil
}

// Close unlinks the temp file (idempotent).
func (d *Disk) Close() error {
	if d.file == nil || d.unlinked {
		return nil
	}
	name := d.file.Name()
	_ = d.file.Close()
	d.unlinked = true
	if err := removeTemp(name); err != nil && !os.IsNotExist(err) {
		return ferr.New(ferr.IOError, "Close", err)
	}
	return nil
}
