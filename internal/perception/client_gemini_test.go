package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClientWithConfig(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-2.0-flash",
		Timeout: 5 * time.Second,
	}, nil)
}

func geminiTextResponse(texts ...string) string {
	parts := make([]map[string]string, 0, len(texts))
	for _, tx := range texts {
		parts = append(parts, map[string]string{"text": tx})
	}
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	})
	return string(body)
}

func TestGeminiCompleteJoinsParts(t *testing.T) {
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "describe the audience", req.Contents[0].Parts[0].Text)

		fmt.Fprint(w, geminiTextResponse("hello ", "world"))
	})

	got, err := client.Complete(context.Background(), "describe the audience")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestGeminiCompleteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, geminiTextResponse("ok"))
	})

	got, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiCompleteAPIError(t *testing.T) {
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":400,"message":"bad model"}}`)
	})

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
}

func TestGeminiCompleteNoCandidates(t *testing.T) {
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	})

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion")
}

func TestGeminiCompleteMissingAPIKey(t *testing.T) {
	client := NewGeminiClientWithConfig(GeminiConfig{}, nil)
	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestGeminiStreamingDeltas(t *testing.T) {
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", geminiTextResponse("the "))
		fmt.Fprintf(w, "data: %s\n\n", geminiTextResponse("answer"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	content, errs := client.CompleteWithStreaming(context.Background(), "prompt")

	var deltas []string
	for d := range content {
		deltas = append(deltas, d)
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"the ", "answer"}, deltas)
	assert.Equal(t, "the answer", strings.Join(deltas, ""))
}

func TestGeminiStreamingHTTPError(t *testing.T) {
	client := testGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	content, errs := client.CompleteWithStreaming(context.Background(), "prompt")
	got, err := Collect(context.Background(), content, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Empty(t, got)
}

func TestGeminiConfigDefaults(t *testing.T) {
	client := NewGeminiClientWithConfig(GeminiConfig{APIKey: "k"}, nil)
	assert.Equal(t, "gemini-2.0-flash", client.Model())
	assert.Equal(t, 8192, client.maxOutputTokens)
	assert.NotNil(t, client.httpClient)
}
