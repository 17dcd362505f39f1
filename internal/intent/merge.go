package intent

import "strings"

// Merge consolidates a newly extracted intent into the prior one. Each
// scalar field keeps the prior value when the new extraction left it
// empty, and is replaced wholesale when it did not; the target-audience
// map is never merged key by key. Constraints are the union of both
// lists, prior entries first, duplicates removed by exact match.
func Merge(prior, next Intent) Intent {
	out := prior

	if next.BusinessGoal != "" {
		out.BusinessGoal = next.BusinessGoal
	}
	if len(next.TargetAudience) > 0 {
		out.TargetAudience = next.TargetAudience
	}
	if next.KPI != "" {
		out.KPI = next.KPI
	}
	if !next.SizePreference.IsZero() {
		out.SizePreference = next.SizePreference
	}
	out.Constraints = unionConstraints(prior.Constraints, next.Constraints)

	return out
}

// unionConstraints appends entries of next that prior does not already
// contain, preserving insertion order. Matching is exact and
// case-sensitive: "No discounts" and "no discounts" are distinct.
func unionConstraints(prior, next []string) []string {
	if len(prior) == 0 && len(next) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(prior)+len(next))
	out := make([]string, 0, len(prior)+len(next))
	for _, lst := range [][]string{prior, next} {
		for _, c := range lst {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// modificationVerbs is the vocabulary scanned by IsModification. The scan
// is advisory only; the conversation engine treats any turn after a
// completed analysis as a potential modification regardless.
var modificationVerbs = []string{
	"change", "modify", "adjust", "update", "switch",
	"remove", "drop", "exclude", "without",
	"add", "include", "also",
	"narrow", "widen", "expand", "shrink",
	"instead", "only", "limit", "relax",
}

// IsModification reports whether the input reads like a request to adjust
// an earlier result rather than start a new analysis.
func IsModification(input string) bool {
	lower := strings.ToLower(input)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	for _, w := range words {
		for _, v := range modificationVerbs {
			if w == v {
				return true
			}
		}
	}
	return false
}
