package audience

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Membership tiers, highest value first.
const (
	TierVVIP   = "VVIP"
	TierVIP    = "VIP"
	TierMember = "Member"
)

// DefaultOrderValue is the average order value assumed for tiers without an
// entry in TierOrderValue, in CNY.
const DefaultOrderValue = 18000

// TierOrderValue maps a membership tier to its average order value in CNY.
var TierOrderValue = map[string]float64{
	TierVVIP:   68000,
	TierVIP:    32000,
	TierMember: 18000,
}

// OrderValueForTier returns the average order value for a tier, falling
// back to DefaultOrderValue for unknown tiers.
func OrderValueForTier(tier string) float64 {
	if v, ok := TierOrderValue[tier]; ok {
		return v
	}
	return DefaultOrderValue
}

// LoadPopulation reads a population from a YAML file of the form
// {records: [...]}.
func LoadPopulation(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read population: %w", err)
	}
	var doc struct {
		Records []Record `yaml:"records"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode population: %w", err)
	}
	return doc.Records, nil
}

// TierDistribution counts records per membership tier.
func TierDistribution(records []Record) map[string]int {
	dist := make(map[string]int)
	for _, r := range records {
		dist[r.Tier()]++
	}
	return dist
}

// AverageFeature returns the mean of a numeric feature across records, or 0
// for an empty slice. Records missing the feature contribute 0.
func AverageFeature(records []Record, name string) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.FeatureNumber(name)
	}
	return sum / float64(len(records))
}

// TopByScore returns up to n records ranked by score, highest first. The
// input slice is not reordered.
func TopByScore(records []Record, n int) []Record {
	ranked := make([]Record, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SamplePopulation returns the built-in demo population used when no
// population file is configured.
func SamplePopulation() []Record {
	return []Record{
		{
			ID: "1", Name: "Ms. Wang", RecentStore: "Shanghai Plaza 66", LastVisit: "3 days ago",
			Reason: "Visited the Shanghai store 3 times last month and clicked the new-arrivals email",
			Features: map[string]any{
				"tier": TierVVIP, "gender": "F", "age_group": "35-44", "city_tier": "T1",
				"score": 98, "brand_loyalty_score": 92, "r12m_spending": 680000,
				"purchase_frequency": 14, "last_purchase_days": 3, "has_overseas_purchase": true,
				"store_visits_90d": 6, "email_open_rate": 0.82,
				"category_browsing": map[string]any{"handbags": 18, "jewelry": 4},
				"cart_items_pending": []any{"handbags"},
			},
		},
		{
			ID: "2", Name: "Ms. Chen", RecentStore: "Beijing SKP", LastVisit: "1 week ago",
			Reason: "Bought 2 accessories in the last 90 days and browsed handbags over 10 times",
			Features: map[string]any{
				"tier": TierVIP, "gender": "F", "age_group": "25-34", "city_tier": "T1",
				"score": 95, "brand_loyalty_score": 84, "r12m_spending": 96000,
				"purchase_frequency": 8, "last_purchase_days": 9, "has_overseas_purchase": false,
				"store_visits_90d": 3, "email_open_rate": 0.66,
				"category_browsing": map[string]any{"handbags": 12},
			},
		},
		{
			ID: "3", Name: "Mr. Li", RecentStore: "Chengdu IFS", LastVisit: "2 weeks ago",
			Reason: "Top 5% annual spend with gift searches around Valentine's Day",
			Features: map[string]any{
				"tier": TierVVIP, "gender": "M", "age_group": "45-54", "city_tier": "T2",
				"score": 92, "brand_loyalty_score": 88, "r12m_spending": 520000,
				"purchase_frequency": 11, "last_purchase_days": 15, "has_overseas_purchase": true,
				"store_visits_90d": 4, "email_open_rate": 0.54,
				"category_browsing": map[string]any{"jewelry": 7},
			},
		},
		{
			ID: "4", Name: "Ms. Zhang", RecentStore: "Shenzhen Bay MixC", LastVisit: "5 days ago",
			Reason: "Recently upgraded membership and saved spring arrivals",
			Features: map[string]any{
				"tier": TierMember, "gender": "F", "age_group": "25-34", "city_tier": "T1",
				"score": 88, "brand_loyalty_score": 61, "r12m_spending": 42000,
				"purchase_frequency": 4, "last_purchase_days": 5, "has_overseas_purchase": false,
				"store_visits_90d": 2, "email_open_rate": 0.48,
				"category_browsing": map[string]any{"handbags": 6},
			},
		},
		{
			ID: "5", Name: "Ms. Liu", RecentStore: "Hangzhou Tower", LastVisit: "1 month ago",
			Reason: "Frequently browses the resort collection and owns small leather goods",
			Features: map[string]any{
				"tier": TierVIP, "gender": "F", "age_group": "35-44", "city_tier": "T2",
				"score": 85, "brand_loyalty_score": 72, "r12m_spending": 130000,
				"purchase_frequency": 6, "last_purchase_days": 31, "has_overseas_purchase": false,
				"store_visits_90d": 1, "email_open_rate": 0.39,
				"cart_items_pending": []any{"shoes", "scarves"},
			},
		},
		{
			ID: "6", Name: "Mr. Zhao", RecentStore: "Beijing China World", LastVisit: "4 days ago",
			Reason: "Bought a gift set over the holidays and attends VIP events",
			Features: map[string]any{
				"tier": TierVVIP, "gender": "M", "age_group": "45-54", "city_tier": "T1",
				"score": 93, "brand_loyalty_score": 90, "r12m_spending": 310000,
				"purchase_frequency": 9, "last_purchase_days": 4, "has_overseas_purchase": true,
				"store_visits_90d": 5, "email_open_rate": 0.71,
				"category_browsing": map[string]any{"handbags": 3, "jewelry": 9},
			},
		},
		{
			ID: "7", Name: "Ms. Su", RecentStore: "Nanjing Deji Plaza", LastVisit: "6 days ago",
			Reason: "Added a tote to cart and keeps returning to spring arrivals",
			Features: map[string]any{
				"tier": TierVIP, "gender": "F", "age_group": "25-34", "city_tier": "T2",
				"score": 89, "brand_loyalty_score": 76, "r12m_spending": 88000,
				"purchase_frequency": 5, "last_purchase_days": 12, "has_overseas_purchase": false,
				"store_visits_90d": 2, "email_open_rate": 0.58,
				"category_browsing": map[string]any{"handbags": 9},
				"cart_items_pending": []any{"handbags"},
			},
		},
		{
			ID: "8", Name: "Ms. Guo", RecentStore: "Chengdu SKP", LastVisit: "1 week ago",
			Reason: "Browsed leather goods more than 8 times and follows new arrivals",
			Features: map[string]any{
				"tier": TierMember, "gender": "F", "age_group": "18-24", "city_tier": "T2",
				"score": 82, "brand_loyalty_score": 55, "r12m_spending": 26000,
				"purchase_frequency": 3, "last_purchase_days": 22, "has_overseas_purchase": false,
				"store_visits_90d": 1, "email_open_rate": 0.35,
				"category_browsing": map[string]any{"handbags": 8},
			},
		},
		{
			ID: "9", Name: "Mr. Wu", RecentStore: "Shanghai Kerry Centre", LastVisit: "2 days ago",
			Reason: "Top 2% annual spend and a regular at private viewings",
			Features: map[string]any{
				"tier": TierVVIP, "gender": "M", "age_group": "35-44", "city_tier": "T1",
				"score": 96, "brand_loyalty_score": 94, "r12m_spending": 820000,
				"purchase_frequency": 17, "last_purchase_days": 2, "has_overseas_purchase": true,
				"store_visits_90d": 8, "email_open_rate": 0.88,
				"category_browsing": map[string]any{"handbags": 14, "jewelry": 11},
			},
		},
		{
			ID: "10", Name: "Ms. Zhou", RecentStore: "Shenzhen Book City", LastVisit: "3 weeks ago",
			Reason: "Clicked marketing emails 10 times with handbag browsing history",
			Features: map[string]any{
				"tier": TierVIP, "gender": "F", "age_group": "35-44", "city_tier": "T1",
				"score": 91, "brand_loyalty_score": 79, "r12m_spending": 115000,
				"purchase_frequency": 7, "last_purchase_days": 25, "has_overseas_purchase": false,
				"store_visits_90d": 1, "email_open_rate": 0.74,
				"category_browsing": map[string]any{"handbags": 5},
			},
		},
		{
			ID: "11", Name: "Ms. Xu", RecentStore: "Hangzhou Building", LastVisit: "10 days ago",
			Reason: "Joined last year and has bought one accessory",
			Features: map[string]any{
				"tier": TierMember, "gender": "F", "age_group": "25-34", "city_tier": "T2",
				"score": 87, "brand_loyalty_score": 58, "r12m_spending": 31000,
				"purchase_frequency": 2, "last_purchase_days": 41, "has_overseas_purchase": false,
				"store_visits_90d": 0, "email_open_rate": 0.42,
			},
		},
		{
			ID: "12", Name: "Mr. He", RecentStore: "Chongqing IFS", LastVisit: "5 days ago",
			Reason: "Top 10% monthly spend and follows every product launch",
			Features: map[string]any{
				"tier": TierVVIP, "gender": "M", "age_group": "55+", "city_tier": "T2",
				"score": 94, "brand_loyalty_score": 86, "r12m_spending": 450000,
				"purchase_frequency": 12, "last_purchase_days": 5, "has_overseas_purchase": false,
				"store_visits_90d": 3, "email_open_rate": 0.63,
				"category_browsing": map[string]any{"jewelry": 6},
			},
		},
	}
}
