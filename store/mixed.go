package store

import "github.com/badu/formbody/ferr"

// DefaultMixedLimit is the promotion threshold spec.md §4.C names as the
// mixed(limit_size) policy default.
const DefaultMixedLimit = 16 << 10 // 16 KiB

// Mixed starts Memory-backed and migrates in place to Disk the moment a
// write would push its size past limitSize: the buffered memory bytes
// are flushed to a fresh Disk store, the memory buffer is released, and
// the write that triggered promotion is then performed against Disk.
// Subsequent writes go straight to Disk. Promotion is one-way.
type Mixed struct {
	kind        FileKind
	limitSize   int64
	maxSize     int64
	definedSize int64
	inner       Store
	onDisk      bool
}

// NewMixed returns an empty Mixed store that promotes to Disk once its
// size would exceed limitSize.
func NewMixed(kind FileKind, limitSize, maxSize, definedSize int64) *Mixed {
	return &Mixed{
		kind:        kind,
		limitSize:   limitSize,
		maxSize:     maxSize,
		definedSize: definedSize,
		inner:       NewMemory(maxSize, definedSize),
	}
}

// OnDisk reports whether promotion to Disk has already happened.
func (x *Mixed) OnDisk() bool { return x.onDisk }

func (x *Mixed) promoteIfNeeded(additional int64) error {
	if x.onDisk {
		return nil
	}
	if x.inner.Size()+additional <= x.limitSize {
		return nil
	}
	return x.forcePromote()
}

// forcePromote migrates to Disk unconditionally, flushing whatever bytes
// Memory currently holds.
func (x *Mixed) forcePromote() error {
	if x.onDisk {
		return nil
	}
	mem := x.inner.(*Memory)
	raw, err := mem.GetBytes()
	if err != nil {
		return err
	}
	disk := NewDisk(x.kind, x.maxSize, x.definedSize)
	if len(raw) > 0 {
		if err := disk.AddContent(raw, false); err != nil {
			return err
		}
	}
	_ = mem.Close()
	x.inner = disk
	x.onDisk = true
	return nil
}

func (x *Mixed) SetContent(p []byte) error {
	if !x.onDisk && int64(len(p)) > x.limitSize {
		// SetContent replaces content outright: the promotion decision
		// is against the replacement size, not the prior size.
		if err := x.forcePromote(); err != nil {
			return err
		}
	}
	return x.inner.SetContent(p)
}

func (x *Mixed) AddContent(p []byte, last bool) error {
	if err := x.promoteIfNeeded(int64(len(p))); err != nil {
		return err
	}
	return x.inner.AddContent(p, last)
}

func (x *Mixed) GetChunk(n int) ([]byte, error)        { return x.inner.GetChunk(n) }
func (x *Mixed) GetBytes() ([]byte, error)              { return x.inner.GetBytes() }
func (x *Mixed) GetString(charset string) (string, error) { return x.inner.GetString(charset) }
func (x *Mixed) RenameTo(target string) error           { return x.inner.RenameTo(target) }
func (x *Mixed) Size() int64                            { return x.inner.Size() }
func (x *Mixed) Completed() bool                        { return x.inner.Completed() }

func (x *Mixed) Close() error {
	if err := x.inner.Close(); err != nil {
		return ferr.New(ferr.IOError, "Close", err)
	}
	return nil
}
