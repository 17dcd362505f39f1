// Package catalog holds the static registry of audience features that
// targeting rules may reference. Each feature declares a type, and the type
// decides which filter operators are legal for it.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeatureType is the closed set of value types a feature can carry.
type FeatureType int

const (
	Numeric FeatureType = iota
	Categorical
	Boolean
	List
)

var featureTypeNames = map[FeatureType]string{
	Numeric:     "numeric",
	Categorical: "categorical",
	Boolean:     "boolean",
	List:        "list",
}

func (t FeatureType) String() string {
	if s, ok := featureTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("FeatureType(%d)", int(t))
}

// ParseFeatureType converts the wire/YAML name of a type to its enum value.
func ParseFeatureType(s string) (FeatureType, error) {
	for t, name := range featureTypeNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown feature type %q", s)
}

// UnmarshalYAML decodes a feature type from its lowercase name.
func (t *FeatureType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseFeatureType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes a feature type as its lowercase name.
func (t FeatureType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// MarshalJSON encodes a feature type as its lowercase name.
func (t FeatureType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Operators returns the filter operators legal for this type. List-typed
// features publish operators for documentation, but the evaluator does not
// implement them yet.
func (t FeatureType) Operators() []string {
	switch t {
	case Numeric:
		return []string{">", ">=", "<", "<=", "==", "between"}
	case Categorical:
		return []string{"==", "in"}
	case Boolean:
		return []string{"=="}
	case List:
		return []string{"contains", "not_empty", "empty"}
	default:
		return nil
	}
}

// ValidOperator reports whether op is legal for this type.
func (t FeatureType) ValidOperator(op string) bool {
	for _, o := range t.Operators() {
		if o == op {
			return true
		}
	}
	return false
}

// Feature describes one attribute of an audience record.
type Feature struct {
	Name        string      `yaml:"name" json:"name"`
	DisplayName string      `yaml:"display_name" json:"display_name"`
	Type        FeatureType `yaml:"type" json:"type"`
	Category    string      `yaml:"category" json:"category"`
	Description string      `yaml:"description" json:"description"`
	Examples    []string    `yaml:"examples" json:"examples,omitempty"`
}

// Catalog is the feature registry. It is immutable after construction.
type Catalog struct {
	features map[string]Feature
	order    []string
}

//go:embed features.yaml
var embeddedFeatures []byte

// Default returns the catalog built from the embedded feature definitions.
// The embedded file is part of the build, so a failure here is a programmer
// error and panics.
func Default() *Catalog {
	c, err := Parse(embeddedFeatures)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded features.yaml invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML feature definitions.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Features []Feature `yaml:"features"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if len(doc.Features) == 0 {
		return nil, fmt.Errorf("no features defined")
	}

	c := &Catalog{features: make(map[string]Feature, len(doc.Features))}
	for _, f := range doc.Features {
		if f.Name == "" {
			return nil, fmt.Errorf("feature with empty name")
		}
		if _, dup := c.features[f.Name]; dup {
			return nil, fmt.Errorf("duplicate feature %q", f.Name)
		}
		c.features[f.Name] = f
		c.order = append(c.order, f.Name)
	}
	return c, nil
}

// Lookup returns the feature with the given name.
func (c *Catalog) Lookup(name string) (Feature, bool) {
	f, ok := c.features[name]
	return f, ok
}

// Names returns the feature names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of registered features.
func (c *Catalog) Len() int { return len(c.features) }

// ByCategory returns the features belonging to the given category, in
// declaration order.
func (c *Catalog) ByCategory(category string) []Feature {
	var out []Feature
	for _, name := range c.order {
		if f := c.features[name]; f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range c.order {
		cat := c.features[name].Category
		if !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out
}

// SearchKeywords returns features whose display name, description, or
// examples contain any of the keywords (case-insensitive).
func (c *Catalog) SearchKeywords(keywords []string) []Feature {
	var out []Feature
	for _, name := range c.order {
		f := c.features[name]
		haystack := strings.ToLower(f.DisplayName + " " + f.Description + " " + strings.Join(f.Examples, " "))
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// PromptSummary renders a compact JSON digest of the catalog for inclusion
// in the feature-matching prompt: name, type, description, operators, and
// at most two examples per feature.
func (c *Catalog) PromptSummary() string {
	type entry struct {
		Type        string   `json:"type"`
		Description string   `json:"description"`
		Operators   []string `json:"operators"`
		Examples    []string `json:"examples,omitempty"`
	}
	digest := make(map[string]entry, len(c.features))
	for _, name := range c.order {
		f := c.features[name]
		ex := f.Examples
		if len(ex) > 2 {
			ex = ex[:2]
		}
		digest[name] = entry{
			Type:        f.Type.String(),
			Description: f.Description,
			Operators:   f.Type.Operators(),
			Examples:    ex,
		}
	}
	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
