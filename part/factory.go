package part

import "github.com/badu/formbody/store"

// StorageMode is the policy enumeration spec.md §4.C names for how a
// newly created part's content is backed.
type StorageMode int

const (
	// AlwaysMemory backs every part with Memory.
	AlwaysMemory StorageMode = iota
	// AlwaysDisk backs every part with Disk.
	AlwaysDisk
	// AlwaysMixed backs every part with Mixed, promoting at LimitSize.
	AlwaysMixed
)

// Policy configures the Factory: storage mode, size ceiling, promotion
// threshold, and default charset, per spec.md §4.C's recognised options.
type Policy struct {
	Mode StorageMode
	// MaxSize is the global per-part ceiling; -1 = unlimited.
	MaxSize int64
	// LimitSize is the Mixed promotion threshold; 0 selects
	// store.DefaultMixedLimit.
	LimitSize int64
	// Charset is the default charset assigned to created parts when the
	// caller doesn't specify one.
	Charset string
}

// DefaultPolicy mirrors spec.md's stated defaults: mixed storage
// promoting at 16 KiB, no size ceiling, UTF-8.
func DefaultPolicy() Policy {
	return Policy{
		Mode:      AlwaysMixed,
		MaxSize:   -1,
		LimitSize: store.DefaultMixedLimit,
		Charset:   "utf-8",
	}
}

func (p Policy) newStore(kind store.FileKind, definedSize int64) store.Store {
	switch p.Mode {
	case AlwaysMemory:
		return store.NewMemory(p.MaxSize, definedSize)
	case AlwaysDisk:
		return store.NewDisk(kind, p.MaxSize, definedSize)
	default:
		limit := p.LimitSize
		if limit <= 0 {
			limit = store.DefaultMixedLimit
		}
		return store.NewMixed(kind, limit, p.MaxSize, definedSize)
	}
}

// Factory creates Parts under a Policy and tracks them in a per-request
// Registry, per spec.md §4.C.
type Factory struct {
	policy   Policy
	registry *Registry
}

// NewFactory returns a Factory that applies policy to every created part
// and records them in registry (nil selects a fresh, private Registry).
func NewFactory(policy Policy, registry *Registry) *Factory {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Factory{policy: policy, registry: registry}
}

// Registry returns the factory's backing registry.
func (f *Factory) Registry() *Registry { return f.registry }

// CreateAttribute creates a text-field Part for request and adds it to
// the registry. definedSize of 0 means unknown, per spec.md §3.
func (f *Factory) CreateAttribute(request any, name string, definedSize int64) *Attribute {
	backing := f.policy.newStore(store.Attribute, definedSize)
	a := NewAttribute(name, f.policy.Charset, definedSize, f.policy.MaxSize, backing)
	f.registry.add(request, a)
	return a
}

// CreateAttributeWithValue creates and immediately populates a text
// field whose entire value is already known (the urlencoded decoder's
// common case).
func (f *Factory) CreateAttributeWithValue(request any, name, value string) (*Attribute, error) {
	a := f.CreateAttribute(request, name, int64(len(value)))
	if err := a.SetValue([]byte(value)); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateFileUpload creates a file-field Part for request and adds it to
// the registry.
func (f *Factory) CreateFileUpload(request any, name, fileName, contentType string, cte ContentTransferEncoding, charset string, size int64) *FileUpload {
	if charset == "" {
		charset = f.policy.Charset
	}
	backing := f.policy.newStore(store.FileUpload, size)
	fu := NewFileUpload(name, fileName, contentType, cte, charset, size, f.policy.MaxSize, backing)
	f.registry.add(request, fu)
	return fu
}

// RemoveFromCleanup detaches p from request's registry entry so a later
// CleanRequest/CleanAll no longer releases it; the caller becomes
// responsible for its lifetime.
func (f *Factory) RemoveFromCleanup(request any, p Part) {
	f.registry.remove(request, p)
}

// CleanRequest releases every part tracked for request.
func (f *Factory) CleanRequest(request any) error {
	return f.registry.clean(request)
}

// CleanAll releases every part tracked for every request.
func (f *Factory) CleanAll() error {
	return f.registry.cleanAll()
}
