// Package metrics projects campaign outcomes from a filtered audience. All
// calculations are pure functions of the audience summary; an empty
// audience always yields a clean zero result.
package metrics

import (
	"crowdpilot/internal/audience"
)

// Defaults for the projection model.
const (
	// BaseConversionRate is the assumed conversion rate before audience-size
	// adjustment.
	BaseConversionRate = 0.05
	// DefaultCampaignCost is the assumed campaign cost in CNY.
	DefaultCampaignCost = 10000
	// DefaultTotalPopulation is the reach-rate denominator when the real
	// population size is unknown.
	DefaultTotalPopulation = 1000
)

// tierWeights feed the quality-score bonus.
var tierWeights = map[string]float64{
	audience.TierVVIP:   0.8,
	audience.TierVIP:    0.5,
	audience.TierMember: 0.2,
}

// TopMember is a ranked audience member surfaced in a prediction.
type TopMember struct {
	Name     string  `json:"name"`
	Tier     string  `json:"tier"`
	Score    float64 `json:"score"`
	Spending float64 `json:"r12m_spending"`
}

// Prediction is the projected outcome for one filtered audience. It is
// recomputed every turn and never persisted on its own.
type Prediction struct {
	AudienceSize     int            `json:"audience_size"`
	ConversionRate   float64        `json:"conversion_rate"`
	EstimatedRevenue float64        `json:"estimated_revenue"`
	ROI              float64        `json:"roi"`
	ReachRate        float64        `json:"reach_rate"`
	QualityScore     float64        `json:"quality_score"`
	CampaignCost     float64        `json:"campaign_cost"`
	TierDistribution map[string]int `json:"tier_distribution,omitempty"`
	TopMembers       []TopMember    `json:"top_members,omitempty"`
}

// Calculator computes campaign projections. The zero value is not usable;
// construct with NewCalculator.
type Calculator struct {
	campaignCost    float64
	totalPopulation int
}

// NewCalculator returns a calculator with the given campaign cost and
// total-population size; non-positive arguments fall back to the defaults.
func NewCalculator(campaignCost float64, totalPopulation int) *Calculator {
	if campaignCost <= 0 {
		campaignCost = DefaultCampaignCost
	}
	if totalPopulation <= 0 {
		totalPopulation = DefaultTotalPopulation
	}
	return &Calculator{campaignCost: campaignCost, totalPopulation: totalPopulation}
}

// ConversionRate estimates the conversion rate for an audience of the given
// size. Smaller, more targeted audiences convert better: the base rate is
// scaled up as the size drops below fixed thresholds, with a cap per band.
func (c *Calculator) ConversionRate(audienceSize int) float64 {
	switch {
	case audienceSize <= 0:
		return 0
	case audienceSize < 100:
		return min(BaseConversionRate*1.8, 0.15)
	case audienceSize < 300:
		return min(BaseConversionRate*1.5, 0.12)
	case audienceSize < 500:
		return min(BaseConversionRate*1.2, 0.10)
	default:
		return BaseConversionRate
	}
}

// EstimatedRevenue sums expected revenue per tier: members × conversion
// rate × tier average order value.
func (c *Calculator) EstimatedRevenue(tierDistribution map[string]int, conversionRate float64) float64 {
	var revenue float64
	for tier, count := range tierDistribution {
		revenue += float64(count) * conversionRate * audience.OrderValueForTier(tier)
	}
	return revenue
}

// ROI returns the return on investment as a percentage of campaign cost.
func (c *Calculator) ROI(estimatedRevenue float64) float64 {
	if c.campaignCost <= 0 {
		return 0
	}
	return (estimatedRevenue - c.campaignCost) / c.campaignCost * 100
}

// ReachRate returns the audience as a percentage of the total population.
func (c *Calculator) ReachRate(audienceSize int) float64 {
	if c.totalPopulation <= 0 {
		return 0
	}
	return float64(audienceSize) / float64(c.totalPopulation) * 100
}

// QualityScore grades the audience from 0 to 100: half the average member
// score plus a bonus for the share of high tiers.
func (c *Calculator) QualityScore(avgMemberScore float64, tierDistribution map[string]int) float64 {
	quality := avgMemberScore * 0.5

	total := 0
	for _, count := range tierDistribution {
		total += count
	}
	if total > 0 {
		var bonus float64
		for tier, count := range tierDistribution {
			bonus += float64(count) / float64(total) * tierWeights[tier] * 50
		}
		quality += bonus
	}
	return min(quality, 100)
}

// Estimate computes the full prediction for an audience summary. An empty
// audience yields the zero prediction (with the campaign cost filled in for
// reporting) rather than negative or divide-by-zero artifacts.
func (c *Calculator) Estimate(audienceSize int, avgMemberScore float64, tierDistribution map[string]int) Prediction {
	if audienceSize <= 0 {
		return Prediction{CampaignCost: c.campaignCost}
	}

	rate := c.ConversionRate(audienceSize)
	revenue := c.EstimatedRevenue(tierDistribution, rate)
	return Prediction{
		AudienceSize:     audienceSize,
		ConversionRate:   rate,
		EstimatedRevenue: revenue,
		ROI:              c.ROI(revenue),
		ReachRate:        c.ReachRate(audienceSize),
		QualityScore:     c.QualityScore(avgMemberScore, tierDistribution),
		CampaignCost:     c.campaignCost,
		TierDistribution: tierDistribution,
	}
}
