package hook

import (
	"fmt"
	"regexp"

	"github.com/tidwall/sjson"
)

var suffixPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidSuffix reports whether suffix can name a unit file. Only letters,
// digits and underscores are accepted, so the name stays inside the hook dir.
func ValidSuffix(suffix string) bool {
	return suffixPattern.MatchString(suffix)
}

// FileName returns the conventional file name for a unit of typeName.
func FileName(typeName, suffix, ext string) string {
	return Key(typeName) + "_" + suffix + ext
}

// NewJSONTemplate returns a skeleton JSON manifest for typeName.
// Property defaults are written under "properties".
func NewJSONTemplate(typeName string, properties map[string]any) ([]byte, error) {
	doc := []byte(`{}`)

	var err error
	if doc, err = sjson.SetBytes(doc, "target", Key(typeName)); err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}
	if doc, err = sjson.SetRawBytes(doc, "properties", []byte(`{}`)); err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}
	for name, value := range properties {
		if doc, err = sjson.SetBytes(doc, "properties."+escapePath(name), value); err != nil {
			return nil, fmt.Errorf("building template: %w", err)
		}
	}
	for _, section := range []string{"methods", "events"} {
		if doc, err = sjson.SetRawBytes(doc, section, []byte(`{}`)); err != nil {
			return nil, fmt.Errorf("building template: %w", err)
		}
	}
	return doc, nil
}

// escapePath escapes characters that have meaning in sjson paths.
func escapePath(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
