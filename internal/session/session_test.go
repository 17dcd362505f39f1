package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdpilot/internal/intent"
	"crowdpilot/internal/metrics"
)

func TestGetOrCreate(t *testing.T) {
	store := NewStore(nil)

	sess, created := store.GetOrCreate("abc")
	require.True(t, created)
	assert.Equal(t, "abc", sess.ID())

	again, created := store.GetOrCreate("abc")
	assert.False(t, created)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, store.Count())
}

func TestGetOrCreateEmptyIDGeneratesFresh(t *testing.T) {
	store := NewStore(nil)

	a, createdA := store.GetOrCreate("")
	b, createdB := store.GetOrCreate("")
	assert.True(t, createdA)
	assert.True(t, createdB)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, store.Count())
}

func TestNewSessionStartsWithDefaultIntent(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("")

	ctx := sess.Context()
	assert.Equal(t, intent.Default(), ctx.Intent)
	assert.False(t, ctx.HasAnalysis)
	assert.Zero(t, sess.TurnCount())
}

func TestResetDiscardsOldSession(t *testing.T) {
	store := NewStore(nil)
	old, _ := store.GetOrCreate("abc")
	old.AppendTurn(Turn{UserInput: "hi", Response: "hello", Kind: "success"})

	fresh := store.Reset("abc")
	assert.NotEqual(t, "abc", fresh.ID())
	assert.Zero(t, fresh.TurnCount())
	assert.Nil(t, store.Get("abc"))
	assert.Same(t, fresh, store.Get(fresh.ID()))
	assert.Equal(t, 1, store.Count())
}

func TestDelete(t *testing.T) {
	store := NewStore(nil)
	store.GetOrCreate("abc")

	assert.True(t, store.Delete("abc"))
	assert.False(t, store.Delete("abc"))
	assert.Zero(t, store.Count())
}

func TestListSorted(t *testing.T) {
	store := NewStore(nil)
	for _, id := range []string{"c", "a", "b"} {
		store.GetOrCreate(id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, store.List())
}

func TestAppendTurnIndices(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("abc")

	t0 := sess.AppendTurn(Turn{UserInput: "first", Response: "resp1", Kind: "clarification"})
	t1 := sess.AppendTurn(Turn{UserInput: "second", Response: "resp2", Kind: "success"})

	assert.Equal(t, 0, t0.Index)
	assert.Equal(t, 1, t1.Index)

	turns := sess.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].UserInput)
	assert.Equal(t, "success", turns[1].Kind)

	// Returned slice is a copy.
	turns[0].UserInput = "mutated"
	assert.Equal(t, "first", sess.Turns()[0].UserInput)
}

func TestTurnKeepsResolvedState(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("abc")

	first := intent.Intent{BusinessGoal: "raise conversion", KPI: intent.KPIConversionRate}
	sess.AppendTurn(Turn{UserInput: "find VIPs", Intent: first, Response: "which VIPs?", Kind: "clarification"})

	second := first
	second.Constraints = []string{"exclude recent buyers"}
	pred := &metrics.Prediction{AudienceSize: 2, ConversionRate: 0.09}
	sess.AppendTurn(Turn{
		UserInput:   "VIPs over 100k",
		Intent:      second,
		AudienceIDs: []string{"u1", "u2"},
		Prediction:  pred,
		Response:    "report",
		Kind:        "success",
	})

	turns := sess.Turns()
	require.Len(t, turns, 2)

	// Each turn holds the state it resolved to, not just the latest.
	assert.Equal(t, "raise conversion", turns[0].Intent.BusinessGoal)
	assert.Empty(t, turns[0].Intent.Constraints)
	assert.Nil(t, turns[0].Prediction)
	assert.Equal(t, []string{"exclude recent buyers"}, turns[1].Intent.Constraints)
	assert.Equal(t, []string{"u1", "u2"}, turns[1].AudienceIDs)
	assert.Equal(t, 2, turns[1].Prediction.AudienceSize)
}

func TestHistorySummary(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("abc")
	assert.Empty(t, sess.HistorySummary(5, 100))

	sess.AppendTurn(Turn{
		UserInput: "find VIPs",
		Intent: intent.Intent{
			BusinessGoal: "raise conversion",
			KPI:          intent.KPIConversionRate,
			Constraints:  []string{"exclude recent buyers"},
		},
		AudienceIDs: []string{"u1", "u2"},
		Prediction:  &metrics.Prediction{AudienceSize: 2},
		Response:    "found 2 members",
		Kind:        "success",
	})
	sess.AppendTurn(Turn{UserInput: "only Shanghai", Response: strings.Repeat("x", 50), Kind: "clarification"})

	got := sess.HistorySummary(5, 10)
	assert.Contains(t, got, "Turn 1:")
	assert.Contains(t, got, "User: find VIPs")
	assert.Contains(t, got, "Goal: raise conversion | KPI: conversion_rate")
	assert.Contains(t, got, "Constraints: exclude recent buyers")
	assert.Contains(t, got, "Matched: 2 members")
	assert.Contains(t, got, "xxxxxxxxxx...")
	assert.NotContains(t, got, strings.Repeat("x", 11))

	// The second turn resolved no intent and matched nothing.
	assert.Contains(t, got, "Goal: n/a | KPI: n/a")

	// lastN window drops the oldest turn.
	windowed := sess.HistorySummary(1, 100)
	assert.NotContains(t, windowed, "find VIPs")
	assert.Contains(t, windowed, "only Shanghai")
}

func TestHistorySummaryTruncatesOnRuneBoundary(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("abc")

	// "¥" is two bytes; a 9-byte cut would land inside it.
	sess.AppendTurn(Turn{UserInput: "q", Response: "revenue ¥136000", Kind: "success"})

	got := sess.HistorySummary(5, 9)
	assert.True(t, utf8.ValidString(got), "summary must stay valid UTF-8: %q", got)
	assert.Contains(t, got, "Assistant: revenue ...")
	assert.NotContains(t, got, "\xc2")
}

func TestSetContext(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("abc")

	ctx := sess.Context()
	ctx.HasAnalysis = true
	ctx.Strategy = "three-wave push"
	ctx.Intent.BusinessGoal = "re-engage"
	sess.SetContext(ctx)

	got := sess.Context()
	assert.True(t, got.HasAnalysis)
	assert.Equal(t, "three-wave push", got.Strategy)
	assert.Equal(t, "re-engage", got.Intent.BusinessGoal)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n%4)
			sess, _ := store.GetOrCreate(id)
			sess.AppendTurn(Turn{UserInput: "in", Response: "out", Kind: "success"})
			store.List()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, store.Count())
	total := 0
	for _, id := range store.List() {
		total += store.Get(id).TurnCount()
	}
	assert.Equal(t, 32, total)
}

func TestTurnLockSerializes(t *testing.T) {
	store := NewStore(nil)
	sess, _ := store.GetOrCreate("locked")

	sess.LockTurn()
	acquired := make(chan struct{})
	go func() {
		sess.LockTurn()
		close(acquired)
		sess.UnlockTurn()
	}()

	select {
	case <-acquired:
		t.Fatal("second turn started while the first still held the lock")
	case <-time.After(20 * time.Millisecond):
	}

	sess.UnlockTurn()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second turn never acquired the lock")
	}
}
