package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Decoder turns the raw content of a unit file into a Unit.
type Decoder interface {
	Decode(id string, data []byte) (*Unit, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(id string, data []byte) (*Unit, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(id string, data []byte) (*Unit, error) {
	return f(id, data)
}

// DirSource discovers units in a directory.
// Entries are listed in lexical order, so load order is deterministic.
type DirSource struct {
	dir      string
	decoders map[string]Decoder
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithDecoder registers a decoder for a file extension (including the dot).
func WithDecoder(ext string, d Decoder) DirOption {
	return func(s *DirSource) {
		s.decoders[strings.ToLower(ext)] = d
	}
}

// WithManifests registers the TOML, YAML and JSON manifest decoders,
// resolving function names through funcs.
func WithManifests(funcs *Funcs) DirOption {
	return func(s *DirSource) {
		s.decoders[".toml"] = TOMLDecoder(funcs)
		s.decoders[".yaml"] = YAMLDecoder(funcs)
		s.decoders[".yml"] = YAMLDecoder(funcs)
		s.decoders[".json"] = JSONDecoder(funcs)
	}
}

// NewDirSource creates a source reading units from dir.
func NewDirSource(dir string, opts ...DirOption) *DirSource {
	s := &DirSource{
		dir:      dir,
		decoders: make(map[string]Decoder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory units are read from.
func (s *DirSource) Dir() string {
	return s.dir
}

// Extensions returns the extensions with a registered decoder.
func (s *DirSource) Extensions() []string {
	exts := make([]string, 0, len(s.decoders))
	for ext := range s.decoders {
		exts = append(exts, ext)
	}
	return exts
}

// Lookup implements Source. A missing directory yields no units.
// Files without a registered decoder still produce a reference; loading it
// fails with ErrNoDecoder so the registry can report it.
func (s *DirSource) Lookup(key string) ([]Ref, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading hook dir %s: %w", s.dir, err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() || !Match(key, entry.Name()) {
			continue
		}
		name := entry.Name()
		path := filepath.Join(s.dir, name)
		refs = append(refs, Ref{
			ID:   name,
			Load: func() (*Unit, error) { return s.load(key, name, path) },
		})
	}
	return refs, nil
}

// All returns references to every decodable unit in the directory, keyed by
// nothing in particular. Used by tooling that checks a whole directory.
func (s *DirSource) All() ([]Ref, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading hook dir %s: %w", s.dir, err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := s.decoders[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		path := filepath.Join(s.dir, name)
		refs = append(refs, Ref{
			ID:   name,
			Load: func() (*Unit, error) { return s.load("", name, path) },
		})
	}
	return refs, nil
}

func (s *DirSource) load(key, name, path string) (*Unit, error) {
	dec, ok := s.decoders[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, &DecodeError{ID: name, Err: ErrNoDecoder}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{ID: name, Err: err}
	}

	unit, err := dec.Decode(name, data)
	if err != nil {
		return nil, &DecodeError{ID: name, Err: err}
	}
	if unit == nil {
		return nil, &DecodeError{ID: name, Err: ErrNilUnit}
	}
	unit.ID = name
	if unit.Target == "" {
		unit.Target = key
	}
	return unit, nil
}
