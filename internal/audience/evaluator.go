package audience

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"crowdpilot/internal/catalog"
)

// Evaluator narrows a population down to the records matching every rule in
// a rule set (logical AND). Rules apply sequentially in the order given; a
// rule whose value cannot be parsed is skipped on its own without touching
// the rest of the set.
type Evaluator struct {
	log *zap.Logger
}

// NewEvaluator returns an evaluator logging skipped rules to log. A nil
// logger disables logging.
func NewEvaluator(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log}
}

// Filter returns the subset of population satisfying all rules. The result
// is a fresh slice; population is never mutated, and filtering the same
// rules twice yields the same subset.
func (e *Evaluator) Filter(rules []Rule, population []Record) []Record {
	current := make([]Record, len(population))
	copy(current, population)

	for _, rule := range rules {
		match, ok := e.predicate(rule)
		if !ok {
			e.log.Debug("skipping unparseable rule",
				zap.String("feature", rule.FeatureName),
				zap.String("operator", rule.Operator),
				zap.Any("value", rule.Value))
			continue
		}
		next := current[:0:0]
		for _, rec := range current {
			if match(rec) {
				next = append(next, rec)
			}
		}
		current = next
	}
	return current
}

// predicate compiles one rule into a record matcher. ok is false when the
// rule's value cannot be interpreted for its declared type, in which case
// the rule is skipped.
func (e *Evaluator) predicate(rule Rule) (func(Record) bool, bool) {
	switch rule.FeatureType {
	case catalog.Numeric:
		return e.numericPredicate(rule)
	case catalog.Categorical:
		return e.categoricalPredicate(rule)
	case catalog.Boolean:
		return e.booleanPredicate(rule)
	case catalog.List:
		// List operators are declared in the catalog but have no evaluator
		// implementation yet; treat as skip, not as an error.
		return nil, false
	default:
		return nil, false
	}
}

func (e *Evaluator) numericPredicate(rule Rule) (func(Record) bool, bool) {
	name := rule.FeatureName

	if rule.Operator == "between" {
		lo, hi, ok := parseBetween(rule.Value)
		if !ok {
			return nil, false
		}
		return func(r Record) bool {
			v := r.FeatureNumber(name)
			return lo <= v && v <= hi
		}, true
	}

	bound, ok := parseNumberValue(rule.Value)
	if !ok {
		return nil, false
	}
	switch rule.Operator {
	case ">":
		return func(r Record) bool { return r.FeatureNumber(name) > bound }, true
	case ">=":
		return func(r Record) bool { return r.FeatureNumber(name) >= bound }, true
	case "<":
		return func(r Record) bool { return r.FeatureNumber(name) < bound }, true
	case "<=":
		return func(r Record) bool { return r.FeatureNumber(name) <= bound }, true
	case "==":
		return func(r Record) bool { return r.FeatureNumber(name) == bound }, true
	default:
		return nil, false
	}
}

func (e *Evaluator) categoricalPredicate(rule Rule) (func(Record) bool, bool) {
	name := rule.FeatureName

	switch rule.Operator {
	case "==":
		want := asString(rule.Value)
		return func(r Record) bool { return r.FeatureString(name) == want }, true
	case "in":
		// A scalar value is treated as a single-element set.
		var want []string
		switch v := rule.Value.(type) {
		case []any:
			for _, item := range v {
				want = append(want, asString(item))
			}
		default:
			want = []string{asString(v)}
		}
		return func(r Record) bool {
			got := r.FeatureString(name)
			for _, w := range want {
				if got == w {
					return true
				}
			}
			return false
		}, true
	default:
		return nil, false
	}
}

func (e *Evaluator) booleanPredicate(rule Rule) (func(Record) bool, bool) {
	name := rule.FeatureName
	if rule.Operator != "==" {
		return nil, false
	}
	want, ok := parseBoolValue(rule.Value)
	if !ok {
		return nil, false
	}
	return func(r Record) bool { return r.FeatureBool(name) == want }, true
}

// parseNumberValue interprets a rule value as a number. Textual literals
// containing a decimal point parse as floats, everything else as integers,
// matching the literal forms the feature-matching stage produces.
func parseNumberValue(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// betweenSplit tokenizes "A and B", "A-B", and "A,B" forms, whitespace
// tolerant.
var betweenSplit = regexp.MustCompile(`\s+and\s+|\s*-\s*|\s*,\s*`)

// parseBetween interprets a between value as an ordered pair. Accepted
// forms: a two-element slice, or a textual "A and B" / "A-B" / "A,B".
// Anything else (wrong token count, non-numeric endpoint) fails the parse.
func parseBetween(v any) (lo, hi float64, ok bool) {
	switch val := v.(type) {
	case []any:
		if len(val) != 2 {
			return 0, 0, false
		}
		lo, ok = parseNumberValue(val[0])
		if !ok {
			return 0, 0, false
		}
		hi, ok = parseNumberValue(val[1])
		if !ok {
			return 0, 0, false
		}
		return lo, hi, true
	case string:
		parts := betweenSplit.Split(strings.TrimSpace(val), -1)
		if len(parts) != 2 {
			return 0, 0, false
		}
		lo, ok = parseNumberValue(parts[0])
		if !ok {
			return 0, 0, false
		}
		hi, ok = parseNumberValue(parts[1])
		if !ok {
			return 0, 0, false
		}
		return lo, hi, true
	default:
		return 0, 0, false
	}
}

// truthyTokens is the fixed set of textual values read as true.
var truthyTokens = map[string]bool{"true": true, "1": true, "yes": true}

func parseBoolValue(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		return truthyTokens[strings.ToLower(strings.TrimSpace(val))], true
	default:
		return false, false
	}
}

// asString renders a rule value element for categorical comparison.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
