package server

import (
	"time"

	"crowdpilot/internal/agent"
	"crowdpilot/internal/audience"
	"crowdpilot/internal/metrics"
)

// Wire schemas use camelCase keys for frontend consumption.

type analysisRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	SessionID string `json:"sessionId"`
}

type userPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Tier        string  `json:"tier"`
	Score       float64 `json:"score"`
	RecentStore string  `json:"recentStore"`
	LastVisit   string  `json:"lastVisit"`
	Reason      string  `json:"reason"`
}

type metricsPayload struct {
	AudienceSize     int                 `json:"audienceSize"`
	ConversionRate   float64             `json:"conversionRate"`
	EstimatedRevenue float64             `json:"estimatedRevenue"`
	ROI              float64             `json:"roi"`
	ReachRate        float64             `json:"reachRate"`
	QualityScore     float64             `json:"qualityScore"`
	TierDistribution map[string]int      `json:"tierDistribution,omitempty"`
	TopMembers       []metrics.TopMember `json:"topMembers,omitempty"`
}

type analysisResponse struct {
	SessionID string          `json:"sessionId"`
	Kind      string          `json:"kind"`
	Response  string          `json:"response"`
	Audience  []userPayload   `json:"audience"`
	Metrics   *metricsPayload `json:"metrics,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type predictionRequest struct {
	AudienceSize int `json:"audienceSize" binding:"required"`
}

type sessionPayload struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	TurnCount int       `json:"turnCount"`
}

type userListResponse struct {
	Users []userPayload `json:"users"`
	Total int           `json:"total"`
}

func toUserPayload(r audience.Record) userPayload {
	return userPayload{
		ID:          r.ID,
		Name:        r.Name,
		Tier:        r.Tier(),
		Score:       r.Score(),
		RecentStore: r.RecentStore,
		LastVisit:   r.LastVisit,
		Reason:      r.Reason,
	}
}

func toMetricsPayload(p metrics.Prediction) metricsPayload {
	return metricsPayload{
		AudienceSize:     p.AudienceSize,
		ConversionRate:   p.ConversionRate,
		EstimatedRevenue: p.EstimatedRevenue,
		ROI:              p.ROI,
		ReachRate:        p.ReachRate,
		QualityScore:     p.QualityScore,
		TierDistribution: p.TierDistribution,
		TopMembers:       p.TopMembers,
	}
}

func toAnalysisResponse(result agent.TurnResult) analysisResponse {
	resp := analysisResponse{
		SessionID: result.SessionID,
		Kind:      string(result.Kind),
		Response:  result.Response,
		Audience:  make([]userPayload, 0, len(result.Audience)),
		Timestamp: time.Now(),
	}
	for _, r := range result.Audience {
		resp.Audience = append(resp.Audience, toUserPayload(r))
	}
	if result.Prediction != nil {
		m := toMetricsPayload(*result.Prediction)
		resp.Metrics = &m
	}
	return resp
}
