package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"crowdpilot/internal/audience"
	"crowdpilot/internal/intent"
	"crowdpilot/internal/metrics"
	"crowdpilot/internal/perception"
	"crowdpilot/internal/session"
)

// Fallback replies used when the collaborator fails mid-stage. A failed
// collaborator call never aborts a turn.
const (
	fallbackClarification = "Could you tell me more about the audience you have in mind? For example the business goal, the member tiers, or the spending level you care about."
	fallbackModification  = "Sorry, we could not express your request with the available audience features. Try simplifying some conditions or describing the behavior you care about, then ask again."
	fallbackStrategy      = "Strategy generation is unavailable right now. Please try again later."
)

// intentPayload is the structured extraction expected from the
// collaborator. IsClear is a pointer so an absent flag can be told apart
// from an explicit false: absence means proceed.
type intentPayload struct {
	BusinessGoal   string                `json:"business_goal"`
	TargetAudience map[string]any        `json:"target_audience"`
	Constraints    []string              `json:"constraints"`
	KPI            string                `json:"kpi"`
	SizePreference intent.SizePreference `json:"size_preference"`
	IsClear        *bool                 `json:"is_clear"`
	Summary        string                `json:"summary"`
}

type matchedFeaturePayload struct {
	FeatureName string `json:"feature_name"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

type matchPayload struct {
	MatchedFeatures []matchedFeaturePayload `json:"matched_features"`
	IsSuccess       *bool                   `json:"is_success"`
	Reason          string                  `json:"reason"`
}

// recognizeIntent extracts the turn's intent and consolidates it into the
// prior one. A collaborator or parse failure yields the prior intent and
// an ambiguous status; an absent is_clear flag counts as clear.
func (e *Engine) recognizeIntent(ctx context.Context, sess *session.Session, input string) (intent.Intent, bool, string) {
	prior := sess.Context().Intent
	history := sess.HistorySummary(historyTurns, historyResponseLen)
	isMod := intent.IsModification(input)

	prompt := buildIntentPrompt(input, history, prior, isMod)
	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		e.log.Warn("intent recognition: collaborator failed", zap.Error(err))
		return prior, false, ""
	}

	payload, err := parseIntentPayload(raw)
	if err != nil {
		e.log.Warn("intent recognition: unparseable response", zap.Error(err))
		return prior, false, ""
	}

	extracted := intent.Intent{
		BusinessGoal:   payload.BusinessGoal,
		TargetAudience: payload.TargetAudience,
		Constraints:    payload.Constraints,
		KPI:            payload.KPI,
		SizePreference: payload.SizePreference,
	}
	if extracted.KPI != "" && !intent.ValidKPI(extracted.KPI) {
		e.log.Debug("intent recognition: dropping unknown kpi", zap.String("kpi", extracted.KPI))
		extracted.KPI = ""
	}

	merged := intent.Merge(prior, extracted)

	clear := payload.IsClear == nil || *payload.IsClear
	summary := payload.Summary
	if summary == "" && merged.BusinessGoal != "" {
		summary = fmt.Sprintf("Understood: %s.", merged.BusinessGoal)
	}
	return merged, clear, summary
}

func parseIntentPayload(raw string) (intentPayload, error) {
	var payload intentPayload
	block := perception.ExtractJSON(raw)
	if block == "" {
		return payload, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return payload, fmt.Errorf("decode intent payload: %w", err)
	}
	return payload, nil
}

// clarify produces the follow-up question for an ambiguous intent.
func (e *Engine) clarify(ctx context.Context, input string, current intent.Intent) string {
	raw, err := e.client.Complete(ctx, buildClarificationPrompt(input, current))
	if err != nil || strings.TrimSpace(raw) == "" {
		e.log.Warn("clarification: using fallback", zap.Error(err))
		return fallbackClarification
	}
	return strings.TrimSpace(raw)
}

// matchFeatures maps the intent onto catalog features. Candidates naming
// unknown features or carrying an operator invalid for the feature's type
// are dropped without failing the stage. A collaborator or parse failure
// reports needs-refinement with no rules.
func (e *Engine) matchFeatures(ctx context.Context, merged intent.Intent) ([]audience.Rule, bool, string) {
	raw, err := e.client.Complete(ctx, buildMatchPrompt(merged, e.catalog.PromptSummary()))
	if err != nil {
		e.log.Warn("feature matching: collaborator failed", zap.Error(err))
		return nil, false, ""
	}

	block := perception.ExtractJSON(raw)
	if block == "" {
		e.log.Warn("feature matching: no JSON object in response")
		return nil, false, ""
	}
	var payload matchPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		e.log.Warn("feature matching: unparseable response", zap.Error(err))
		return nil, false, ""
	}

	rules := make([]audience.Rule, 0, len(payload.MatchedFeatures))
	for _, cand := range payload.MatchedFeatures {
		rule, err := audience.NewRule(e.catalog, cand.FeatureName, cand.Operator, cand.Value, cand.Description)
		if err != nil {
			e.log.Debug("feature matching: dropping candidate",
				zap.String("feature", cand.FeatureName),
				zap.String("operator", cand.Operator),
				zap.Error(err))
			continue
		}
		rules = append(rules, rule)
	}

	success := payload.IsSuccess == nil || *payload.IsSuccess
	return rules, success, matchSummary(rules)
}

func matchSummary(rules []audience.Rule) string {
	if len(rules) == 0 {
		return "No matching audience features were found; consider rephrasing the request."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matched %d targeting features:\n", len(rules))
	for i, r := range rules {
		if i == 5 {
			break
		}
		desc := r.Description
		if desc == "" {
			desc = fmt.Sprintf("%s %s %v", r.FeatureName, r.Operator, r.Value)
		}
		fmt.Fprintf(&sb, "- %s\n", desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// requestModification explains why the request needs narrowing.
func (e *Engine) requestModification(ctx context.Context, merged intent.Intent, rules []audience.Rule) string {
	raw, err := e.client.Complete(ctx, buildModificationPrompt(merged, rules))
	if err != nil || strings.TrimSpace(raw) == "" {
		e.log.Warn("modification request: using fallback", zap.Error(err))
		return fallbackModification
	}
	return strings.TrimSpace(raw)
}

// generateStrategy explains how the resolved rules serve the goal.
func (e *Engine) generateStrategy(ctx context.Context, merged intent.Intent, rules []audience.Rule) string {
	raw, err := e.client.Complete(ctx, buildStrategyPrompt(merged, rules))
	if err != nil || strings.TrimSpace(raw) == "" {
		e.log.Warn("strategy generation: using fallback", zap.Error(err))
		return fallbackStrategy
	}
	return strings.TrimSpace(raw)
}

// predictImpact filters the population and projects outcomes. Purely
// local: no collaborator call, and an empty audience is a valid
// zero-metrics result.
func (e *Engine) predictImpact(rules []audience.Rule) ([]audience.Record, metrics.Prediction) {
	filtered := e.evaluator.Filter(rules, e.population)

	dist := audience.TierDistribution(filtered)
	avgLoyalty := audience.AverageFeature(filtered, "brand_loyalty_score")

	prediction := e.calculator.Estimate(len(filtered), avgLoyalty, dist)
	for _, r := range audience.TopByScore(filtered, topMemberCount) {
		prediction.TopMembers = append(prediction.TopMembers, metrics.TopMember{
			Name:     r.Name,
			Tier:     r.Tier(),
			Score:    r.Score(),
			Spending: r.FeatureNumber("r12m_spending"),
		})
	}
	return filtered, prediction
}

// finalAnalysis renders the closing report. When the collaborator fails,
// the numbers still reach the caller through a fixed-format report.
func (e *Engine) finalAnalysis(ctx context.Context, strategy string, prediction metrics.Prediction) string {
	raw, err := e.client.Complete(ctx, buildReportPrompt(strategy, prediction))
	if err != nil || strings.TrimSpace(raw) == "" {
		e.log.Warn("final analysis: synthesizing fallback report", zap.Error(err))
		return fallbackReport(prediction)
	}
	return strings.TrimSpace(raw)
}

// streamFinalAnalysis is the streaming variant: deltas are forwarded to
// onDelta as they arrive and the assembled report is returned. Falls back
// the same way finalAnalysis does.
func (e *Engine) streamFinalAnalysis(ctx context.Context, strategy string, prediction metrics.Prediction, onDelta func(string)) string {
	content, errs := e.client.CompleteWithStreaming(ctx, buildReportPrompt(strategy, prediction))

	var sb strings.Builder
	for content != nil || errs != nil {
		select {
		case delta, ok := <-content:
			if !ok {
				content = nil
				continue
			}
			sb.WriteString(delta)
			onDelta(delta)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				e.log.Warn("final analysis stream: synthesizing fallback report", zap.Error(err))
				return fallbackReport(prediction)
			}
		case <-ctx.Done():
			return fallbackReport(prediction)
		}
	}

	report := strings.TrimSpace(sb.String())
	if report == "" {
		return fallbackReport(prediction)
	}
	return report
}

func fallbackReport(p metrics.Prediction) string {
	return fmt.Sprintf(`# Audience Analysis Report

## Selection Overview
- **Audience size**: %d members
- **Estimated conversion rate**: %.2f%%
- **Estimated revenue**: ¥%.0f
- **ROI**: %.1f%%

## Recommendation
Based on the numbers above, the selection is ready to run.`,
		p.AudienceSize, p.ConversionRate*100, p.EstimatedRevenue, p.ROI)
}
