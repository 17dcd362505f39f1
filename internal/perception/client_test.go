package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare object",
			response: `{"a":1}`,
			want:     `{"a":1}`,
		},
		{
			name:     "markdown fenced",
			response: "Here you go:\n```json\n{\"a\": 1, \"b\": {\"c\": 2}}\n```\nDone.",
			want:     `{"a": 1, "b": {"c": 2}}`,
		},
		{
			name:     "prose around object",
			response: `Sure! The result is {"is_clear": true} as requested.`,
			want:     `{"is_clear": true}`,
		},
		{
			name:     "brace inside string literal",
			response: `{"note": "use {braces} carefully", "n": 1}`,
			want:     `{"note": "use {braces} carefully", "n": 1}`,
		},
		{
			name:     "escaped quote inside string",
			response: `{"note": "she said \"hi\" {", "n": 2} trailing`,
			want:     `{"note": "she said \"hi\" {", "n": 2}`,
		},
		{
			name:     "first of two objects",
			response: `{"a":1} and {"b":2}`,
			want:     `{"a":1}`,
		},
		{
			name:     "no object",
			response: "no JSON here",
			want:     "",
		},
		{
			name:     "unbalanced",
			response: `{"a": {"b": 1}`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.response))
		})
	}
}

func TestCollectAccumulates(t *testing.T) {
	content := make(chan string, 4)
	errs := make(chan error, 1)
	content <- "hel"
	content <- "lo "
	content <- "world"
	close(content)
	close(errs)

	got, err := Collect(context.Background(), content, errs)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestCollectStopsOnError(t *testing.T) {
	content := make(chan string)
	errs := make(chan error)
	go func() {
		content <- "partial"
		errs <- errors.New("stream broke")
	}()

	// Leave content open: the error must terminate collection anyway.
	got, err := Collect(context.Background(), content, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream broke")
	assert.Equal(t, "partial", got)
}

func TestCollectBufferedErrorSurvivesContentClose(t *testing.T) {
	// A producer that fails before the first delta buffers the error and
	// closes both channels; the closed content channel and the buffered
	// error are then ready simultaneously, and the error must win every
	// time, not per select ordering.
	for i := 0; i < 200; i++ {
		content := make(chan string)
		errs := make(chan error, 1)
		errs <- errors.New("HTTP 500: upstream unavailable")
		close(content)
		close(errs)

		got, err := Collect(context.Background(), content, errs)
		require.EqualError(t, err, "HTTP 500: upstream unavailable")
		assert.Empty(t, got)
	}
}

func TestCollectContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	content := make(chan string)
	errs := make(chan error)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Collect(ctx, content, errs)
	assert.ErrorIs(t, err, context.Canceled)
}
