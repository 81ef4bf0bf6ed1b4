package part

import "sync"

// entry is one tracked part together with its creation sequence number,
// so a request's list can be walked in creation order, per spec.md §3
// invariant 6.
type entry struct {
	seq  int64
	part Part
}

// Registry maps a request to the ordered list of parts created for it,
// keyed by request identity. spec.md §4.C.
type Registry struct {
	mu      sync.Mutex
	nextSeq int64
	byReq   map[any][]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byReq: make(map[any][]entry)}
}

func (r *Registry) add(request any, p Part) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	r.byReq[request] = append(r.byReq[request], entry{seq: r.nextSeq, part: p})
}

// remove detaches p from request's list by identity (not value
// equality): duplicates that Equal() each other are preserved unless
// the exact same Part value is removed.
func (r *Registry) remove(request any, p Part) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byReq[request]
	for i, e := range list {
		if e.part == p {
			r.byReq[request] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byReq[request]) == 0 {
		delete(r.byReq, request)
	}
}

// Parts returns request's tracked parts in creation order. The returned
// slice is a copy; mutating it does not affect the registry.
func (r *Registry) Parts(request any) []Part {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byReq[request]
	out := make([]Part, len(list))
	for i, e := range list {
		out[i] = e.part
	}
	return out
}

// clean releases every part tracked for request and removes the entry.
func (r *Registry) clean(request any) error {
	r.mu.Lock()
	list := r.byReq[request]
	delete(r.byReq, request)
	r.mu.Unlock()

	return releaseAll(list)
}

// cleanAll drains the whole registry, releasing every tracked part. New
// additions racing with cleanAll are picked up by retrying against a
// fresh snapshot until the map is observed empty, per spec.md §4.C.
func (r *Registry) cleanAll() error {
	var firstErr error
	for {
		r.mu.Lock()
		if len(r.byReq) == 0 {
			r.mu.Unlock()
			return firstErr
		}
		snapshot := r.byReq
		r.byReq = make(map[any][]entry)
		r.mu.Unlock()

		for _, list := range snapshot {
			if err := releaseAll(list); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
}

// releaseAll releases the registry's own reference on each part. A part
// still Retain()'d by another owner survives until that owner releases
// its share too, per the reference-count invariant.
func releaseAll(list []entry) error {
	var firstErr error
	for _, e := range list {
		if _, err := e.part.Release(1); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
