// Package intent models the accumulated targeting intent of a conversation
// and the consolidation rules that merge a new turn's extraction into it.
package intent

// KPI values form a closed set.
const (
	KPIConversionRate = "conversion_rate"
	KPIRevenue        = "revenue"
	KPIVisitRate      = "visit_rate"
	KPIEngagement     = "engagement"
)

// ValidKPI reports whether s is one of the supported KPIs.
func ValidKPI(s string) bool {
	switch s {
	case KPIConversionRate, KPIRevenue, KPIVisitRate, KPIEngagement:
		return true
	}
	return false
}

// SizePreference bounds the desired audience size.
type SizePreference struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsZero reports whether no preference was stated.
func (s SizePreference) IsZero() bool { return s.Min == 0 && s.Max == 0 }

// Intent is the accumulated understanding of what the caller wants. The
// target-audience descriptor stays an open map at the collaborator
// boundary; constraints accumulate across turns and are never dropped by
// consolidation.
type Intent struct {
	BusinessGoal   string         `json:"business_goal"`
	TargetAudience map[string]any `json:"target_audience,omitempty"`
	Constraints    []string       `json:"constraints,omitempty"`
	KPI            string         `json:"kpi"`
	SizePreference SizePreference `json:"size_preference"`
}

// Default returns the intent assumed before anything has been extracted.
func Default() Intent {
	return Intent{
		KPI:            KPIConversionRate,
		SizePreference: SizePreference{Min: 50, Max: 500},
	}
}

// IsZero reports whether the intent carries no information at all.
func (i Intent) IsZero() bool {
	return i.BusinessGoal == "" &&
		len(i.TargetAudience) == 0 &&
		len(i.Constraints) == 0 &&
		i.KPI == "" &&
		i.SizePreference.IsZero()
}
