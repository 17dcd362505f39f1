package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"crowdpilot/internal/audience"
	"crowdpilot/internal/intent"
	"crowdpilot/internal/metrics"
)

func jsonBlock(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// buildIntentPrompt asks the collaborator to extract a structured intent.
// When prior context exists it is included as the already-merged baseline
// so the collaborator reads, not performs, the consolidation.
func buildIntentPrompt(input, history string, prior intent.Intent, isModification bool) string {
	var sb strings.Builder

	sb.WriteString("You are a marketing expert analyzing an audience-targeting request.\n\n")

	if history != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(history)
		sb.WriteString("\n\nAccumulated intent from previous turns:\n")
		sb.WriteString(jsonBlock(prior))
		sb.WriteString("\n\n")
		if isModification {
			sb.WriteString("The new input looks like a modification of the previous request.\n")
		}
		sb.WriteString("Fold the new input into the accumulated intent: keep every prior constraint, " +
			"keep prior fields the new input does not mention, and let the new input win on conflicts.\n\n")
	}

	fmt.Fprintf(&sb, "New user input: %s\n\n", input)

	sb.WriteString(`Return ONLY a JSON object with these fields:
- business_goal: the business objective (e.g. "raise conversion rate")
- target_audience: attribute map describing who to target (tier, age, gender, spending, ...)
- constraints: ALL constraint strings, previous and new
- kpi: one of conversion_rate, revenue, visit_rate, engagement
- size_preference: {"min": <int>, "max": <int>}
- is_clear: true/false, whether the intent is specific enough to act on
- summary: one or two sentences restating the full consolidated request

Example:
{
  "business_goal": "raise spring launch conversion",
  "target_audience": {"tier": ["VVIP"], "gender": "female"},
  "constraints": ["exclude buyers from the last 7 days"],
  "kpi": "conversion_rate",
  "size_preference": {"min": 100, "max": 500},
  "is_clear": true,
  "summary": "Target female VVIP members for the spring launch, excluding recent buyers."
}`)

	return sb.String()
}

func buildClarificationPrompt(input string, current intent.Intent) string {
	return fmt.Sprintf(`You are a marketing assistant. The user's request is too vague to act on.

User input: %s
Intent recognized so far: %s

Write one natural, friendly follow-up question that asks for:
1. the business goal (raise conversion, grow revenue, drive store visits, ...)
2. the audience to target (member tier, age range, spending level, ...)
3. any constraints (audience size, budget, exclusions)

Return plain text only, no JSON.`, input, jsonBlock(current))
}

func buildMatchPrompt(merged intent.Intent, catalogSummary string) string {
	return fmt.Sprintf(`You are a data analyst. Map the targeting intent below onto the available audience features.

Targeting intent:
%s

Available features:
%s

Return ONLY a JSON object:
{
  "matched_features": [
    {
      "feature_name": "<name from the list above>",
      "operator": "<one of >, >=, <, <=, ==, in, between, contains, not_empty, empty>",
      "value": <the comparison value>,
      "description": "<plain-language description of this filter>"
    }
  ],
  "is_success": true/false,
  "reason": "<when is_success is false, why the intent cannot be expressed>"
}

Notes:
1. Set is_success to false if essential parts of the intent have no matching feature.
2. Prefer combining several features over a single loose one.
3. Use "in" for categorical features such as tier or age_group and numeric operators for spending or counts.`,
		jsonBlock(merged), catalogSummary)
}

func buildModificationPrompt(merged intent.Intent, rules []audience.Rule) string {
	return fmt.Sprintf(`You are a marketing assistant. The user's targeting request cannot be fully expressed with the available audience features.

Targeting intent:
%s

Features that did match:
%s

Write a short, friendly reply that explains which parts could not be satisfied and suggests how to adjust the request, for example by simplifying conditions or describing behavior instead of interest tags. Return plain text only.`,
		jsonBlock(merged), jsonBlock(rules))
}

func buildStrategyPrompt(merged intent.Intent, rules []audience.Rule) string {
	return fmt.Sprintf(`You are a marketing strategist. The targeting features below have been resolved for the user's request.

Targeting intent:
%s

Resolved features:
%s

Explain in plain language:
1. how these features combine to select the audience
2. why this selection serves the stated business goal
3. what effect to expect

Write a clear, professional explanation of roughly 200 words. No JSON.`,
		jsonBlock(merged), jsonBlock(rules))
}

func buildReportPrompt(strategy string, prediction metrics.Prediction) string {
	return fmt.Sprintf(`You are a data analyst. Produce the final report for an audience-targeting run.

Strategy:
%s

Predicted outcomes:
%s

Write a professional markdown report covering:
1. **Selection overview** (audience size, tier distribution)
2. **Projected metrics** (conversion rate, estimated revenue, ROI)
3. **Top members** (the highest-value members, up to five)
4. **Recommendations** grounded in the numbers

Roughly 300-500 words.`, strategy, jsonBlock(prediction))
}
