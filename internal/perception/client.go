// Package perception holds the language-model boundary: the client
// interface the conversation engine talks to, a Gemini implementation,
// and helpers for pulling structured payloads out of model output.
package perception

import (
	"context"
	"strings"
)

// Client is the collaborator surface the engine depends on. Complete
// returns the full response; CompleteWithStreaming returns incremental
// content deltas. Both channels close when the stream ends; a value on
// the error channel terminates the stream.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithStreaming(ctx context.Context, prompt string) (<-chan string, <-chan error)
}

// Collect drains a streaming response into a single string. It stops on
// the first error, on context cancellation, or once both channels have
// closed, returning whatever content arrived before the terminal event.
// A closed content channel alone is not terminal: the producer may have
// buffered an error before closing, and that error must not be lost.
func Collect(ctx context.Context, content <-chan string, errs <-chan error) (string, error) {
	var sb strings.Builder
	for content != nil || errs != nil {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case delta, ok := <-content:
			if !ok {
				content = nil
				continue
			}
			sb.WriteString(delta)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return sb.String(), err
			}
		}
	}
	return sb.String(), nil
}

// ExtractJSON returns the first balanced JSON object embedded in the
// response, tolerating markdown fences and prose around it. Braces
// inside string literals do not affect the depth count. Returns "" when
// no complete object is found.
func ExtractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}
