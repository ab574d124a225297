package hook

import "fmt"

// Ref is a lazily loaded reference to a unit.
type Ref struct {
	// ID identifies the unit. A registry loads each ID at most once per instance.
	ID string

	// Load produces a fresh unit. It is called once per instance that merges it.
	Load func() (*Unit, error)
}

// Source locates units for a type key.
type Source interface {
	// Lookup returns references to every unit that applies to key, in load order.
	Lookup(key string) ([]Ref, error)
}

// MemorySource holds units registered in code.
// Units are returned in registration order. Every Load yields a copy, so
// instances never share a unit value.
type MemorySource struct {
	entries map[string][]memoryEntry
}

type memoryEntry struct {
	id   string
	load func() (*Unit, error)
}

// NewMemorySource creates a source holding units. Units that Add rejects
// are ignored.
func NewMemorySource(units ...*Unit) *MemorySource {
	s := &MemorySource{entries: make(map[string][]memoryEntry)}
	for _, u := range units {
		_ = s.Add(u)
	}
	return s
}

// Add registers a unit. The unit's Target must be a normalized key.
// Adding a unit whose ID is already registered for the same target replaces it.
//
// A unit with a Closer is rejected with ErrSharedCloser: every instance
// would close the same resource. Register a factory with AddFunc instead.
func (s *MemorySource) Add(u *Unit) error {
	if u == nil {
		return ErrNilUnit
	}
	if u.Closer != nil {
		return fmt.Errorf("%w: %s", ErrSharedCloser, u.ID)
	}
	return s.AddFunc(u.ID, u.Target, func() (*Unit, error) { return u.clone(), nil })
}

// AddFunc registers a factory for the unit id targeting key. load is called
// once per instance that merges the unit, and each result is owned by that
// instance.
func (s *MemorySource) AddFunc(id, key string, load func() (*Unit, error)) error {
	if id == "" || key == "" {
		return fmt.Errorf("%w: unit needs an ID and a target", ErrInvalidUnit)
	}
	if load == nil {
		return fmt.Errorf("%w: %s has no loader", ErrInvalidUnit, id)
	}
	entry := memoryEntry{id: id, load: load}
	list := s.entries[key]
	for i, existing := range list {
		if existing.id == id {
			list[i] = entry
			return nil
		}
	}
	s.entries[key] = append(list, entry)
	return nil
}

// Lookup implements Source.
func (s *MemorySource) Lookup(key string) ([]Ref, error) {
	list := s.entries[key]
	refs := make([]Ref, 0, len(list))
	for _, e := range list {
		e := e
		refs = append(refs, Ref{
			ID: e.id,
			Load: func() (*Unit, error) {
				u, err := e.load()
				if err != nil {
					return nil, err
				}
				if u == nil {
					return nil, ErrNilUnit
				}
				if u.ID == "" {
					u.ID = e.id
				}
				if u.Target == "" {
					u.Target = key
				}
				return u, nil
			},
		})
	}
	return refs, nil
}

// Chain layers several sources. References are returned source by source;
// a later source contributes only IDs the earlier ones did not.
func Chain(sources ...Source) Source {
	return chain(sources)
}

type chain []Source

func (c chain) Lookup(key string) ([]Ref, error) {
	var refs []Ref
	seen := make(map[string]bool)
	for _, src := range c {
		if src == nil {
			continue
		}
		found, err := src.Lookup(key)
		if err != nil {
			return nil, err
		}
		for _, ref := range found {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			refs = append(refs, ref)
		}
	}
	return refs, nil
}
