// Package audience holds the population model and the predicate evaluator
// that narrows a population down to the records matching a rule set.
package audience

import (
	"strings"
)

// Record is one population member. Identity fields are fixed; everything a
// rule can filter on lives in the Features map. Records are never mutated
// by the evaluator.
type Record struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	RecentStore string         `yaml:"recent_store" json:"recentStore,omitempty"`
	LastVisit   string         `yaml:"last_visit" json:"lastVisit,omitempty"`
	Reason      string         `yaml:"reason" json:"reason,omitempty"`
	Features    map[string]any `yaml:"features" json:"features,omitempty"`
}

// Feature resolves a feature value by name. Dotted names traverse nested
// maps, so "category_browsing.handbags" reads Features["category_browsing"]
// ["handbags"].
func (r Record) Feature(name string) (any, bool) {
	var cur any = r.Features
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// FeatureNumber returns the feature as a float64, or 0 when the feature is
// absent or not numeric.
func (r Record) FeatureNumber(name string) float64 {
	v, ok := r.Feature(name)
	if !ok {
		return 0
	}
	f, _ := asNumber(v)
	return f
}

// FeatureString returns the feature as a string, or "" when absent.
func (r Record) FeatureString(name string) string {
	v, ok := r.Feature(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// FeatureBool returns the feature as a bool, or false when absent or not
// boolean.
func (r Record) FeatureBool(name string) bool {
	v, ok := r.Feature(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Tier returns the membership tier, or TierMember when unset.
func (r Record) Tier() string {
	if t := r.FeatureString("tier"); t != "" {
		return t
	}
	return TierMember
}

// Score returns the record's match score used for ranking top members.
func (r Record) Score() float64 {
	return r.FeatureNumber("score")
}

// asNumber coerces the numeric types that YAML and JSON decoding produce.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
