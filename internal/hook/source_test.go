package hook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMemorySource(t *testing.T) {
	a := &Unit{ID: "Widget_a", Target: "Widget"}
	b := &Unit{ID: "Widget_b", Target: "Widget"}
	other := &Unit{ID: "Gadget_a", Target: "Gadget"}

	src := NewMemorySource(a, b, other)

	refs, err := src.Lookup("Widget")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Lookup() returned %d refs, want 2", len(refs))
	}
	if refs[0].ID != "Widget_a" || refs[1].ID != "Widget_b" {
		t.Errorf("Lookup() order = %s, %s", refs[0].ID, refs[1].ID)
	}

	u, err := refs[1].Load()
	if err != nil || u.ID != "Widget_b" || u == b {
		t.Errorf("Load() = %p, %v; want a copy of Widget_b", u, err)
	}

	refs, _ = src.Lookup("Nothing")
	if len(refs) != 0 {
		t.Errorf("Lookup(Nothing) returned %d refs", len(refs))
	}
}

func TestMemorySourceAddValidation(t *testing.T) {
	src := NewMemorySource()

	if err := src.Add(nil); !errors.Is(err, ErrNilUnit) {
		t.Errorf("Add(nil) error = %v, want ErrNilUnit", err)
	}
	if err := src.Add(&Unit{ID: "x"}); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("Add(no target) error = %v, want ErrInvalidUnit", err)
	}

	first := &Unit{ID: "Widget_a", Target: "Widget", Properties: map[string]any{"v": 1}}
	second := &Unit{ID: "Widget_a", Target: "Widget", Properties: map[string]any{"v": 2}}
	_ = src.Add(first)
	_ = src.Add(second)

	refs, _ := src.Lookup("Widget")
	if len(refs) != 1 {
		t.Fatalf("re-adding an ID should replace, got %d refs", len(refs))
	}
	if u, _ := refs[0].Load(); u.Properties["v"] != 2 {
		t.Error("re-added unit did not replace the first one")
	}

	if err := src.Add(&Unit{ID: "Widget_c", Target: "Widget", Closer: nopCloser{}}); !errors.Is(err, ErrSharedCloser) {
		t.Errorf("Add(closer) error = %v, want ErrSharedCloser", err)
	}
	if err := src.AddFunc("Widget_d", "Widget", nil); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("AddFunc(nil) error = %v, want ErrInvalidUnit", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func TestMemorySourceLoadsCopies(t *testing.T) {
	src := NewMemorySource(&Unit{ID: "Widget_a", Target: "Widget", Properties: map[string]any{"x": 1}})
	refs, _ := src.Lookup("Widget")

	first, _ := refs[0].Load()
	first.ID = "changed"
	first.Properties["x"] = 99

	second, _ := refs[0].Load()
	if second == first || second.ID != "Widget_a" || second.Properties["x"] != 1 {
		t.Errorf("second Load() = %+v, shares state with the first", second)
	}
}

func TestMemorySourceAddFunc(t *testing.T) {
	src := NewMemorySource()
	loads := 0
	err := src.AddFunc("Widget_res", "Widget", func() (*Unit, error) {
		loads++
		return &Unit{Closer: nopCloser{}}, nil
	})
	if err != nil {
		t.Fatalf("AddFunc() error = %v", err)
	}

	refs, _ := src.Lookup("Widget")
	a, err := refs[0].Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b, _ := refs[0].Load()
	if a == b || loads != 2 {
		t.Errorf("loads = %d, same unit = %v; want a fresh unit per Load", loads, a == b)
	}
	if a.ID != "Widget_res" || a.Target != "Widget" {
		t.Errorf("unit = {ID: %q, Target: %q}", a.ID, a.Target)
	}
}

func TestChain(t *testing.T) {
	base := NewMemorySource(
		&Unit{ID: "Widget_a", Target: "Widget", Properties: map[string]any{"from": "base"}},
	)
	layer := NewMemorySource(
		&Unit{ID: "Widget_a", Target: "Widget", Properties: map[string]any{"from": "layer"}},
		&Unit{ID: "Widget_b", Target: "Widget"},
	)

	refs, err := Chain(base, nil, layer).Lookup("Widget")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Lookup() returned %d refs, want 2", len(refs))
	}
	u, _ := refs[0].Load()
	if u.Properties["from"] != "base" {
		t.Errorf("first source should win for duplicate IDs, got %v", u.Properties["from"])
	}
	if refs[1].ID != "Widget_b" {
		t.Errorf("refs[1].ID = %q, want Widget_b", refs[1].ID)
	}
}

func TestDirSourceMissingDir(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "nope"))

	refs, err := src.Lookup("Widget")
	if err != nil {
		t.Errorf("Lookup() on missing dir error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("Lookup() on missing dir returned %d refs", len(refs))
	}
}

func TestDirSourceLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Widget_b.toml", "[properties]\nx = 2\n")
	writeFile(t, dir, "Widget_a.yaml", "properties:\n  x: 1\n")
	writeFile(t, dir, "Gadget_a.toml", "[properties]\ny = 1\n")
	writeFile(t, dir, "Widget.toml", "")
	if err := os.Mkdir(filepath.Join(dir, "Widget_dir.toml"), 0755); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(dir, WithManifests(NewFuncs()))
	if src.Dir() != dir {
		t.Errorf("Dir() = %q", src.Dir())
	}

	refs, err := src.Lookup("Widget")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Lookup() returned %d refs, want 2", len(refs))
	}
	if refs[0].ID != "Widget_a.yaml" || refs[1].ID != "Widget_b.toml" {
		t.Errorf("Lookup() order = %s, %s; want lexical", refs[0].ID, refs[1].ID)
	}

	u, err := refs[1].Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if u.ID != "Widget_b.toml" || u.Target != "Widget" {
		t.Errorf("unit = {ID: %q, Target: %q}", u.ID, u.Target)
	}
	if u.Properties["x"] != int64(2) {
		t.Errorf("x = %#v, want int64(2)", u.Properties["x"])
	}
}

func TestDirSourceNoDecoder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Widget_a.def", "anything")

	refs, err := NewDirSource(dir).Lookup("Widget")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Lookup() returned %d refs, want 1", len(refs))
	}

	_, err = refs[0].Load()
	if !errors.Is(err, ErrNoDecoder) {
		t.Errorf("Load() error = %v, want ErrNoDecoder", err)
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.ID != "Widget_a.def" {
		t.Errorf("Load() error = %#v, want DecodeError for Widget_a.def", err)
	}
}

func TestDirSourceCustomDecoder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Widget_extra.def", "ignored")

	dec := DecoderFunc(func(id string, data []byte) (*Unit, error) {
		return &Unit{Properties: map[string]any{"x": 1}}, nil
	})
	refs, _ := NewDirSource(dir, WithDecoder(".DEF", dec)).Lookup("Widget")
	if len(refs) != 1 {
		t.Fatalf("Lookup() returned %d refs, want 1", len(refs))
	}
	u, err := refs[0].Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if u.ID != "Widget_extra.def" || u.Properties["x"] != 1 {
		t.Errorf("unit = %+v", u)
	}
}

func TestDirSourceAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Widget_a.toml", "")
	writeFile(t, dir, "Gadget_a.json", "{}")
	writeFile(t, dir, "README.md", "docs")

	refs, err := NewDirSource(dir, WithManifests(nil)).All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("All() returned %d refs, want 2", len(refs))
	}
	if refs[0].ID != "Gadget_a.json" {
		t.Errorf("All()[0] = %q", refs[0].ID)
	}
}
