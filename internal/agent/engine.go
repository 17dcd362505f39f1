// Package agent drives one conversation turn through its stages: intent
// recognition, feature matching, strategy generation, impact prediction,
// and the final report, with clarification and modification off-ramps.
package agent

import (
	"context"

	"go.uber.org/zap"

	"crowdpilot/internal/audience"
	"crowdpilot/internal/catalog"
	"crowdpilot/internal/intent"
	"crowdpilot/internal/metrics"
	"crowdpilot/internal/perception"
	"crowdpilot/internal/session"
)

const (
	historyTurns       = 10
	historyResponseLen = 200
	topMemberCount     = 5
)

// Stage names, in pipeline order.
const (
	StageIntentRecognition   = "intent_recognition"
	StageClarification       = "clarification"
	StageFeatureMatching     = "feature_matching"
	StageModificationRequest = "modification_request"
	StageStrategyGeneration  = "strategy_generation"
	StageImpactPrediction    = "impact_prediction"
	StageFinalAnalysis       = "final_analysis"
)

// ResultKind tags the terminal outcome of a turn.
type ResultKind string

const (
	KindClarification      ResultKind = "clarification"
	KindModificationNeeded ResultKind = "modification_needed"
	KindSuccess            ResultKind = "success"
)

// TurnResult is the terminal outcome of one turn. Response always holds
// the text to show the caller; the remaining fields are populated per
// Kind: Clarification carries only Intent, ModificationNeeded adds Rules,
// Success adds Audience and Prediction.
type TurnResult struct {
	SessionID  string              `json:"session_id"`
	Kind       ResultKind          `json:"kind"`
	Response   string              `json:"response"`
	Intent     intent.Intent       `json:"intent"`
	Rules      []audience.Rule     `json:"rules,omitempty"`
	Audience   []audience.Record   `json:"audience,omitempty"`
	Prediction *metrics.Prediction `json:"prediction,omitempty"`
}

// EventType tags a streamed turn event.
type EventType string

const (
	EventStageStart    EventType = "stage_start"
	EventStageComplete EventType = "stage_complete"
	EventDelta         EventType = "delta"
	EventTurnComplete  EventType = "turn_complete"
	EventTurnError     EventType = "turn_error"
)

// Event is one entry in a streamed turn.
type Event struct {
	Type    EventType   `json:"type"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  *TurnResult `json:"result,omitempty"`
}

// Engine runs conversation turns. All collaborators are explicit
// dependencies constructed once at process start; the engine itself holds
// no per-turn state. Turns on distinct sessions may run concurrently;
// turns on the same session are serialized by the session store contract.
type Engine struct {
	client     perception.Client
	catalog    *catalog.Catalog
	population []audience.Record
	evaluator  *audience.Evaluator
	calculator *metrics.Calculator
	sessions   *session.Store
	log        *zap.Logger
}

// Config collects the engine's dependencies.
type Config struct {
	Client     perception.Client
	Catalog    *catalog.Catalog
	Population []audience.Record
	Calculator *metrics.Calculator
	Sessions   *session.Store
	Logger     *zap.Logger
}

// NewEngine constructs an engine. Client is required; the remaining
// dependencies default to the embedded catalog, the sample population, a
// default calculator, and a fresh store.
func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	pop := cfg.Population
	if pop == nil {
		pop = audience.SamplePopulation()
	}
	calc := cfg.Calculator
	if calc == nil {
		calc = metrics.NewCalculator(0, 0)
	}
	store := cfg.Sessions
	if store == nil {
		store = session.NewStore(log)
	}
	return &Engine{
		client:     cfg.Client,
		catalog:    cat,
		population: pop,
		evaluator:  audience.NewEvaluator(log),
		calculator: calc,
		sessions:   store,
		log:        log,
	}
}

// Sessions exposes the engine's session store.
func (e *Engine) Sessions() *session.Store { return e.sessions }

// Catalog exposes the engine's feature catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Population exposes the engine's population snapshot.
func (e *Engine) Population() []audience.Record { return e.population }

// Calculator exposes the engine's metrics calculator.
func (e *Engine) Calculator() *metrics.Calculator { return e.calculator }

// RunTurn processes one input against the session identified by
// sessionID, creating the session when absent (an empty id starts a fresh
// one). It always reaches a terminal result; collaborator failures
// surface only as fallback text, never as an error. The returned error is
// reserved for context cancellation.
func (e *Engine) RunTurn(ctx context.Context, sessionID, input string) (TurnResult, error) {
	return e.run(ctx, sessionID, input, nil)
}

// RunTurnStream is RunTurn with progress reporting: stage boundaries,
// report deltas, and the terminal result are emitted on the returned
// channel, which closes when the turn ends.
func (e *Engine) RunTurnStream(ctx context.Context, sessionID, input string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		result, err := e.run(ctx, sessionID, input, emit)
		if err != nil {
			emit(Event{Type: EventTurnError, Message: err.Error()})
			return
		}
		emit(Event{Type: EventTurnComplete, Result: &result})
	}()
	return events
}

func (e *Engine) run(ctx context.Context, sessionID, input string, emit func(Event)) (TurnResult, error) {
	streaming := emit != nil
	if !streaming {
		emit = func(Event) {}
	}

	sess, created := e.sessions.GetOrCreate(sessionID)
	if created {
		e.log.Info("turn on new session", zap.String("session_id", sess.ID()))
	}
	sess.LockTurn()
	defer sess.UnlockTurn()

	emit(Event{Type: EventStageStart, Stage: StageIntentRecognition})
	merged, clear, summary := e.recognizeIntent(ctx, sess, input)
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	emit(Event{Type: EventStageComplete, Stage: StageIntentRecognition, Message: summary})

	if !clear {
		emit(Event{Type: EventStageStart, Stage: StageClarification})
		question := e.clarify(ctx, input, merged)
		emit(Event{Type: EventStageComplete, Stage: StageClarification})

		result := TurnResult{
			SessionID: sess.ID(),
			Kind:      KindClarification,
			Response:  question,
			Intent:    merged,
		}
		e.commit(sess, input, result)
		return result, ctx.Err()
	}

	emit(Event{Type: EventStageStart, Stage: StageFeatureMatching})
	rules, matched, matchMsg := e.matchFeatures(ctx, merged)
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	emit(Event{Type: EventStageComplete, Stage: StageFeatureMatching, Message: matchMsg})

	if !matched {
		emit(Event{Type: EventStageStart, Stage: StageModificationRequest})
		guidance := e.requestModification(ctx, merged, rules)
		emit(Event{Type: EventStageComplete, Stage: StageModificationRequest})

		result := TurnResult{
			SessionID: sess.ID(),
			Kind:      KindModificationNeeded,
			Response:  guidance,
			Intent:    merged,
			Rules:     rules,
		}
		e.commit(sess, input, result)
		return result, ctx.Err()
	}

	emit(Event{Type: EventStageStart, Stage: StageStrategyGeneration})
	strategy := e.generateStrategy(ctx, merged, rules)
	emit(Event{Type: EventStageComplete, Stage: StageStrategyGeneration})

	emit(Event{Type: EventStageStart, Stage: StageImpactPrediction})
	filtered, prediction := e.predictImpact(rules)
	emit(Event{Type: EventStageComplete, Stage: StageImpactPrediction})

	emit(Event{Type: EventStageStart, Stage: StageFinalAnalysis})
	var report string
	if streaming {
		report = e.streamFinalAnalysis(ctx, strategy, prediction, func(delta string) {
			emit(Event{Type: EventDelta, Stage: StageFinalAnalysis, Message: delta})
		})
	} else {
		report = e.finalAnalysis(ctx, strategy, prediction)
	}
	emit(Event{Type: EventStageComplete, Stage: StageFinalAnalysis})

	result := TurnResult{
		SessionID:  sess.ID(),
		Kind:       KindSuccess,
		Response:   report,
		Intent:     merged,
		Rules:      rules,
		Audience:   filtered,
		Prediction: &prediction,
	}
	e.commitSuccess(sess, input, result, strategy)
	return result, ctx.Err()
}

// commit records a terminal non-success turn: the consolidated intent is
// kept but the last completed analysis, if any, stays in place.
func (e *Engine) commit(sess *session.Session, input string, result TurnResult) {
	snap := sess.Context()
	snap.Intent = result.Intent
	sess.SetContext(snap)
	sess.AppendTurn(session.Turn{
		UserInput: input,
		Intent:    result.Intent,
		Response:  result.Response,
		Kind:      string(result.Kind),
	})
}

func (e *Engine) commitSuccess(sess *session.Session, input string, result TurnResult, strategy string) {
	ids := make([]string, 0, len(result.Audience))
	for _, r := range result.Audience {
		ids = append(ids, r.ID)
	}
	sess.SetContext(session.Context{
		Intent:         result.Intent,
		HasAnalysis:    true,
		AudienceIDs:    ids,
		Strategy:       strategy,
		LastPrediction: result.Prediction,
	})
	sess.AppendTurn(session.Turn{
		UserInput:   input,
		Intent:      result.Intent,
		AudienceIDs: ids,
		Prediction:  result.Prediction,
		Response:    result.Response,
		Kind:        string(result.Kind),
	})
}
