package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDefaultsToPrior(t *testing.T) {
	prior := Intent{
		BusinessGoal:   "re-engage lapsed VIPs",
		TargetAudience: map[string]any{"tier": "VIP"},
		Constraints:    []string{"budget under 50k"},
		KPI:            KPIRevenue,
		SizePreference: SizePreference{Min: 100, Max: 300},
	}

	got := Merge(prior, Intent{})
	if diff := cmp.Diff(prior, got); diff != "" {
		t.Errorf("empty extraction changed intent (-want +got):\n%s", diff)
	}
}

func TestMergeOverridesWholeField(t *testing.T) {
	prior := Intent{
		BusinessGoal:   "re-engage lapsed VIPs",
		TargetAudience: map[string]any{"tier": "VIP", "city": "Shanghai"},
		KPI:            KPIRevenue,
		SizePreference: SizePreference{Min: 100, Max: 300},
	}
	next := Intent{
		TargetAudience: map[string]any{"tier": "VVIP"},
		SizePreference: SizePreference{Max: 150},
	}

	got := Merge(prior, next)

	// The audience map is replaced wholesale, never deep-merged: the
	// prior "city" key does not survive.
	assert.Equal(t, map[string]any{"tier": "VVIP"}, got.TargetAudience)
	assert.Equal(t, SizePreference{Max: 150}, got.SizePreference)
	assert.Equal(t, "re-engage lapsed VIPs", got.BusinessGoal)
	assert.Equal(t, KPIRevenue, got.KPI)
}

func TestMergeConstraintUnion(t *testing.T) {
	prior := Intent{Constraints: []string{"a", "b"}}
	next := Intent{Constraints: []string{"b", "c", "a", "c"}}

	got := Merge(prior, next)
	require.Equal(t, []string{"a", "b", "c"}, got.Constraints)
}

func TestMergeConstraintsCaseSensitive(t *testing.T) {
	prior := Intent{Constraints: []string{"No discounts"}}
	next := Intent{Constraints: []string{"no discounts"}}

	got := Merge(prior, next)
	assert.Equal(t, []string{"No discounts", "no discounts"}, got.Constraints)
}

func TestMergeConstraintsNeverRemoved(t *testing.T) {
	prior := Intent{Constraints: []string{"exclude churned"}}
	got := Merge(prior, Intent{BusinessGoal: "new goal"})
	assert.Equal(t, []string{"exclude churned"}, got.Constraints)
}

func TestMergeBothEmpty(t *testing.T) {
	got := Merge(Intent{}, Intent{})
	assert.Nil(t, got.Constraints)
	assert.True(t, got.IsZero())
}

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, KPIConversionRate, d.KPI)
	assert.Equal(t, SizePreference{Min: 50, Max: 500}, d.SizePreference)
	assert.False(t, d.IsZero())
}

func TestValidKPI(t *testing.T) {
	for _, k := range []string{KPIConversionRate, KPIRevenue, KPIVisitRate, KPIEngagement} {
		assert.True(t, ValidKPI(k), k)
	}
	assert.False(t, ValidKPI("ctr"))
	assert.False(t, ValidKPI(""))
}

func TestIsModification(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"change the tier to VVIP", true},
		{"please remove the age filter", true},
		{"Only keep members in Shanghai", true},
		{"narrow it down a bit", true},
		{"I want to find high spenders for a new campaign", false},
		{"who visited last month", false},
		{"", false},
		// Substrings of verbs do not count as matches.
		{"the exchanged goods policy", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsModification(tc.input), tc.input)
	}
}
