package store

import "sync/atomic"

// Counted wraps a Store with the atomic reference count spec.md §3/§4.B
// require: Retain/Release adjust the count, and Release that reaches
// zero calls Delete exactly once (CAS-guarded, so a racing double
// Release from two owners can't double-free).
//
// This maps the teacher's absent "IReferenceCounted" surface — badu-http
// has no analogue, since net/http parts are owned by a single blocking
// Reader — onto plain sync/atomic, the idiom every pack repo reaches for
// (e.g. go-mizu-mizu's store.go family guards shared counters the same
// way) rather than a dedicated refcounting library, none of which
// appears anywhere in the pack.
type Counted struct {
	Store
	refCount int64
	deleted  int32
}

// NewCounted wraps s with an initial reference count of 1.
func NewCounted(s Store) *Counted {
	return &Counted{Store: s, refCount: 1}
}

// Retain increments the reference count by n (n defaults to 1 if <= 0).
func (c *Counted) Retain(n int64) int64 {
	if n <= 0 {
		n = 1
	}
	return atomic.AddInt64(&c.refCount, n)
}

// Release decrements the reference count by n (n defaults to 1 if <= 0).
// When the count reaches zero, Delete is invoked exactly once.
func (c *Counted) Release(n int64) (int64, error) {
	if n <= 0 {
		n = 1
	}
	remaining := atomic.AddInt64(&c.refCount, -n)
	if remaining <= 0 && atomic.CompareAndSwapInt32(&c.deleted, 0, 1) {
		return remaining, c.Store.Close()
	}
	return remaining, nil
}

// RefCount returns the current reference count.
func (c *Counted) RefCount() int64 {
	return atomic.LoadInt64(&c.refCount)
}

// Touch is a diagnostics no-op: the hint is ignored and nothing is
// forwarded to the underlying store, since this store layer carries no
// buffer-pool or tracing hooks.
func (c *Counted) Touch(hint string) {
	_ = hint
}
