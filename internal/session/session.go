// Package session tracks multi-turn conversations: the per-session
// accumulated context and an in-memory store keyed by session ID.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"crowdpilot/internal/intent"
	"crowdpilot/internal/metrics"
)

// Turn is one completed exchange: the input, what the engine resolved
// during the turn, and the reply. Turns are immutable once appended.
// AudienceIDs and Prediction stay empty on non-success turns.
type Turn struct {
	Index       int                 `json:"index"`
	UserInput   string              `json:"user_input"`
	Intent      intent.Intent       `json:"intent"`
	AudienceIDs []string            `json:"audience_ids,omitempty"`
	Prediction  *metrics.Prediction `json:"prediction,omitempty"`
	Response    string              `json:"response"`
	Kind        string              `json:"kind"`
	At          time.Time           `json:"at"`
}

// Context is the cross-turn state the engine consolidates into. It is
// copied in and out of the session under its lock.
type Context struct {
	Intent         intent.Intent       `json:"intent"`
	HasAnalysis    bool                `json:"has_analysis"`
	AudienceIDs    []string            `json:"audience_ids,omitempty"`
	Strategy       string              `json:"strategy,omitempty"`
	LastPrediction *metrics.Prediction `json:"last_prediction,omitempty"`
}

// Session is one conversation. All access goes through methods; the
// embedded mutex serializes concurrent turns against the same session.
type Session struct {
	id        string
	createdAt time.Time

	// turnMu serializes whole turns on this session; mu guards only the
	// field snapshots below.
	turnMu sync.Mutex

	mu        sync.Mutex
	updatedAt time.Time
	turns     []Turn
	context   Context
}

// LockTurn acquires the session's turn lock. Concurrent turns on the same
// session are not supported; the engine holds this lock for the duration
// of a turn so they serialize instead of racing.
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn releases the turn lock.
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		createdAt: now,
		updatedAt: now,
		context:   Context{Intent: intent.Default()},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the time of the last append or context change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Context returns a snapshot of the accumulated context.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// SetContext replaces the accumulated context wholesale.
func (s *Session) SetContext(c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = c
	s.updatedAt = time.Now()
}

// AppendTurn records a completed exchange, stamping Index and At, and
// returns the stored turn.
func (s *Session) AppendTurn(t Turn) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Index = len(s.turns)
	t.At = time.Now()
	s.turns = append(s.turns, t)
	s.updatedAt = t.At
	return t
}

// Turns returns a copy of the turn history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnCount returns how many turns have completed.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// HistorySummary renders the most recent turns for inclusion in a
// prompt: the input, the intent each turn resolved to, how many members
// matched, and the reply. Responses longer than maxResponseLen are
// truncated so history does not crowd out the instruction.
func (s *Session) HistorySummary(lastN, maxResponseLen int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 {
		return ""
	}
	start := 0
	if lastN > 0 && len(s.turns) > lastN {
		start = len(s.turns) - lastN
	}

	var sb strings.Builder
	for _, t := range s.turns[start:] {
		fmt.Fprintf(&sb, "Turn %d:\n  User: %s\n", t.Index+1, t.UserInput)
		fmt.Fprintf(&sb, "  Goal: %s | KPI: %s\n", orNA(t.Intent.BusinessGoal), orNA(t.Intent.KPI))
		if len(t.Intent.TargetAudience) > 0 {
			fmt.Fprintf(&sb, "  Audience: %v\n", t.Intent.TargetAudience)
		}
		if len(t.Intent.Constraints) > 0 {
			fmt.Fprintf(&sb, "  Constraints: %s\n", strings.Join(t.Intent.Constraints, "; "))
		}
		if t.Prediction != nil {
			fmt.Fprintf(&sb, "  Matched: %d members\n", t.Prediction.AudienceSize)
		}
		fmt.Fprintf(&sb, "  Assistant: %s\n", truncate(t.Response, maxResponseLen))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// NewID generates a fresh session identifier.
func NewID() string { return uuid.NewString() }
