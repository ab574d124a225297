package hook

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Funcs is a table of Go functions that manifest units refer to by name.
type Funcs struct {
	methods  map[string]Method
	handlers map[string]Handler
	inits    map[string]Initializer
}

// NewFuncs creates an empty function table.
func NewFuncs() *Funcs {
	return &Funcs{
		methods:  make(map[string]Method),
		handlers: make(map[string]Handler),
		inits:    make(map[string]Initializer),
	}
}

// RegisterMethod makes m available to manifests as name.
func (f *Funcs) RegisterMethod(name string, m Method) {
	f.methods[name] = m
}

// RegisterHandler makes h available to manifests as name.
func (f *Funcs) RegisterHandler(name string, h Handler) {
	f.handlers[name] = h
}

// RegisterInit makes fn available to manifests as name.
func (f *Funcs) RegisterInit(name string, fn Initializer) {
	f.inits[name] = fn
}

// Names returns every registered function name, sorted.
func (f *Funcs) Names() []string {
	names := make([]string, 0, len(f.methods)+len(f.handlers)+len(f.inits))
	for n := range f.methods {
		names = append(names, n)
	}
	for n := range f.handlers {
		names = append(names, n)
	}
	for n := range f.inits {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Manifest is the declarative form of a unit.
type Manifest struct {
	// Target optionally pins the unit to a type name or key. Defaults to the key
	// it was discovered for. A unit pinned to another type fails to merge.
	Target     string            `toml:"target" yaml:"target"`
	Properties map[string]any    `toml:"properties" yaml:"properties"`
	Methods    map[string]string `toml:"methods" yaml:"methods"`
	Events     map[string]string `toml:"events" yaml:"events"`
	Init       string            `toml:"init" yaml:"init"`
}

// Unit resolves the manifest's function references and builds a unit.
func (m *Manifest) Unit(id string, funcs *Funcs) (*Unit, error) {
	if funcs == nil {
		funcs = NewFuncs()
	}

	u := &Unit{
		ID:         id,
		Target:     m.Target,
		Properties: make(map[string]any, len(m.Properties)),
		Methods:    make(map[string]Method, len(m.Methods)),
		Events:     make(map[string]Handler, len(m.Events)),
	}
	for name, value := range m.Properties {
		u.Properties[name] = value
	}
	for name, ref := range m.Methods {
		fn, ok := funcs.methods[ref]
		if !ok {
			return nil, fmt.Errorf("%w: method %s -> %q", ErrUnknownFunc, name, ref)
		}
		u.Methods[name] = fn
	}
	for event, ref := range m.Events {
		fn, ok := funcs.handlers[ref]
		if !ok {
			return nil, fmt.Errorf("%w: event %s -> %q", ErrUnknownFunc, event, ref)
		}
		u.Events[event] = fn
	}
	if m.Init != "" {
		fn, ok := funcs.inits[m.Init]
		if !ok {
			return nil, fmt.Errorf("%w: init -> %q", ErrUnknownFunc, m.Init)
		}
		u.Init = fn
	}
	return u, nil
}

// TOMLDecoder decodes TOML manifests.
func TOMLDecoder(funcs *Funcs) Decoder {
	return DecoderFunc(func(id string, data []byte) (*Unit, error) {
		var m Manifest
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
		}
		return m.Unit(id, funcs)
	})
}

// YAMLDecoder decodes YAML manifests.
func YAMLDecoder(funcs *Funcs) Decoder {
	return DecoderFunc(func(id string, data []byte) (*Unit, error) {
		var m Manifest
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
		}
		return m.Unit(id, funcs)
	})
}

// JSONDecoder decodes JSON manifests. Numbers decode as float64.
func JSONDecoder(funcs *Funcs) Decoder {
	return DecoderFunc(func(id string, data []byte) (*Unit, error) {
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidUnit)
		}
		root := gjson.ParseBytes(data)
		if !root.IsObject() {
			return nil, fmt.Errorf("%w: top level must be an object", ErrInvalidUnit)
		}

		m := Manifest{
			Target: root.Get("target").String(),
			Init:   root.Get("init").String(),
		}
		if props := root.Get("properties"); props.IsObject() {
			m.Properties = make(map[string]any)
			props.ForEach(func(k, v gjson.Result) bool {
				m.Properties[k.String()] = v.Value()
				return true
			})
		}
		m.Methods = stringMap(root.Get("methods"))
		m.Events = stringMap(root.Get("events"))
		return m.Unit(id, funcs)
	})
}

func stringMap(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	out := make(map[string]string)
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}
