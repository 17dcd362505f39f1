package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crowdpilot/internal/agent"
	"crowdpilot/internal/audience"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt cannot be empty"})
		return
	}

	result, err := s.engine.RunTurn(c.Request.Context(), req.SessionID, req.Prompt)
	if err != nil {
		// Only cancellation reaches here; collaborator failures resolve
		// to fallback text inside the engine.
		s.log.Warn("analysis cancelled", zap.Error(err))
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
		return
	}

	c.JSON(http.StatusOK, toAnalysisResponse(result))
}

// handleAnalysisStream streams stage events as server-sent events. Each
// event is a JSON object; the terminal event carries the full result.
func (s *Server) handleAnalysisStream(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events := s.engine.RunTurnStream(c.Request.Context(), req.SessionID, req.Prompt)
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		data, err := json.Marshal(toStreamEvent(ev))
		if err != nil {
			s.log.Error("stream event marshal failed", zap.Error(err))
			return false
		}
		c.SSEvent("message", string(data))
		return true
	})
}

// toStreamEvent converts an engine event to its wire form.
func toStreamEvent(ev agent.Event) gin.H {
	out := gin.H{"type": string(ev.Type)}
	if ev.Stage != "" {
		out["stage"] = ev.Stage
	}
	if ev.Message != "" {
		out["message"] = ev.Message
	}
	if ev.Result != nil {
		out["result"] = toAnalysisResponse(*ev.Result)
	}
	return out
}

func (s *Server) handleFeatures(c *gin.Context) {
	cat := s.engine.Catalog()

	type featurePayload struct {
		Name        string   `json:"name"`
		DisplayName string   `json:"displayName"`
		Type        string   `json:"type"`
		Category    string   `json:"category"`
		Description string   `json:"description"`
		Operators   []string `json:"operators"`
	}

	features := make([]featurePayload, 0, cat.Len())
	for _, name := range cat.Names() {
		f, _ := cat.Lookup(name)
		features = append(features, featurePayload{
			Name:        f.Name,
			DisplayName: f.DisplayName,
			Type:        f.Type.String(),
			Category:    f.Category,
			Description: f.Description,
			Operators:   f.Type.Operators(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"features": features, "total": len(features)})
}

func (s *Server) handleHighPotentialUsers(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	ranked := audience.TopByScore(s.engine.Population(), limit)
	users := make([]userPayload, 0, len(ranked))
	for _, r := range ranked {
		users = append(users, toUserPayload(r))
	}
	c.JSON(http.StatusOK, userListResponse{Users: users, Total: len(users)})
}

func (s *Server) handlePredictMetrics(c *gin.Context) {
	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AudienceSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audienceSize is required"})
		return
	}

	calc := s.engine.Calculator()
	rate := calc.ConversionRate(req.AudienceSize)
	// Without a concrete audience the projection assumes the base tier.
	dist := map[string]int{audience.TierMember: req.AudienceSize}
	revenue := calc.EstimatedRevenue(dist, rate)

	c.JSON(http.StatusOK, metricsPayload{
		AudienceSize:     req.AudienceSize,
		ConversionRate:   rate,
		EstimatedRevenue: revenue,
		ROI:              calc.ROI(revenue),
		ReachRate:        calc.ReachRate(req.AudienceSize),
		QualityScore:     calc.QualityScore(85, dist),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess, _ := s.engine.Sessions().GetOrCreate("")
	c.JSON(http.StatusCreated, sessionPayload{
		SessionID: sess.ID(),
		CreatedAt: sess.CreatedAt(),
		UpdatedAt: sess.UpdatedAt(),
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	store := s.engine.Sessions()
	out := make([]sessionPayload, 0, store.Count())
	for _, id := range store.List() {
		sess := store.Get(id)
		if sess == nil {
			continue
		}
		out = append(out, sessionPayload{
			SessionID: sess.ID(),
			CreatedAt: sess.CreatedAt(),
			UpdatedAt: sess.UpdatedAt(),
			TurnCount: sess.TurnCount(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "total": len(out)})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess := s.engine.Sessions().Get(c.Param("id"))
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sess.ID(),
		"createdAt": sess.CreatedAt(),
		"updatedAt": sess.UpdatedAt(),
		"turns":     sess.Turns(),
		"context":   sess.Context(),
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.engine.Sessions().Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleResetSession(c *gin.Context) {
	fresh := s.engine.Sessions().Reset(c.Param("id"))
	c.JSON(http.StatusOK, sessionPayload{
		SessionID: fresh.ID(),
		CreatedAt: fresh.CreatedAt(),
		UpdatedAt: fresh.UpdatedAt(),
	})
}
