package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_FeatureDottedPath(t *testing.T) {
	r := Record{Features: map[string]any{
		"category_browsing": map[string]any{"handbags": 12},
		"r12m_spending":     250000,
	}}

	v, ok := r.Feature("category_browsing.handbags")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	_, ok = r.Feature("category_browsing.watches")
	assert.False(t, ok)

	// A dotted path through a non-map value resolves to nothing.
	_, ok = r.Feature("r12m_spending.anything")
	assert.False(t, ok)
}

func TestRecord_TypedAccessors(t *testing.T) {
	r := Record{Features: map[string]any{
		"tier":   TierVIP,
		"score":  float64(91.5),
		"count":  7,
		"flag":   true,
		"label":  "classic",
	}}

	assert.Equal(t, 91.5, r.FeatureNumber("score"))
	assert.Equal(t, 7.0, r.FeatureNumber("count"))
	assert.Zero(t, r.FeatureNumber("missing"))
	assert.Zero(t, r.FeatureNumber("label"))

	assert.Equal(t, "classic", r.FeatureString("label"))
	assert.Empty(t, r.FeatureString("missing"))

	assert.True(t, r.FeatureBool("flag"))
	assert.False(t, r.FeatureBool("missing"))

	assert.Equal(t, TierVIP, r.Tier())
	assert.Equal(t, 91.5, r.Score())
}

func TestRecord_TierDefaultsToMember(t *testing.T) {
	assert.Equal(t, TierMember, Record{}.Tier())
}

func TestTierDistribution(t *testing.T) {
	pop := SamplePopulation()
	dist := TierDistribution(pop)

	total := 0
	for _, n := range dist {
		total += n
	}
	assert.Equal(t, len(pop), total)
	assert.NotZero(t, dist[TierVVIP])
	assert.NotZero(t, dist[TierVIP])
	assert.NotZero(t, dist[TierMember])
}

func TestAverageFeature(t *testing.T) {
	recs := []Record{
		{Features: map[string]any{"brand_loyalty_score": 80}},
		{Features: map[string]any{"brand_loyalty_score": 60}},
		{Features: map[string]any{}}, // contributes 0
	}
	assert.InDelta(t, 140.0/3, AverageFeature(recs, "brand_loyalty_score"), 1e-9)
	assert.Zero(t, AverageFeature(nil, "brand_loyalty_score"))
}

func TestTopByScore(t *testing.T) {
	recs := []Record{
		{ID: "low", Features: map[string]any{"score": 10}},
		{ID: "high", Features: map[string]any{"score": 99}},
		{ID: "mid", Features: map[string]any{"score": 50}},
	}
	top := TopByScore(recs, 2)
	assert.Equal(t, []string{"high", "mid"}, ids(top))

	// Input order is untouched.
	assert.Equal(t, "low", recs[0].ID)

	assert.Len(t, TopByScore(recs, 10), 3)
}

func TestOrderValueForTier(t *testing.T) {
	assert.Equal(t, float64(68000), OrderValueForTier(TierVVIP))
	assert.Equal(t, float64(DefaultOrderValue), OrderValueForTier("Platinum"))
}
