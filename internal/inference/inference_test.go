package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/metrics"
)

type fakeCompleter struct {
	out string
	err error
}

func (f fakeCompleter) Complete(context.Context, string, time.Duration) (string, error) {
	return f.out, f.err
}

func TestIsUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: fmt.Errorf("ollama: %w", ErrUnavailable), want: true},
		{name: "refused text", err: errors.New("dial tcp 127.0.0.1:11434: Connection Refused"), want: true},
		{name: "timeout", err: context.DeadlineExceeded, want: false},
		{name: "other", err: errors.New("bad response"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsUnavailable(tt.err))
		})
	}
}

func TestOllamaComplete_ClosedServerIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	c, err := NewOllama("llama3.1", url, nil)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hello", time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.InferenceConfig{Provider: "bard", Model: "x"}, nil)
	require.Error(t, err)
}

func TestInstrument_PassesThroughAndRecords(t *testing.T) {
	t.Parallel()

	rec := metrics.New(prometheus.NewRegistry())

	out, err := Instrument(fakeCompleter{out: "Verdict: PASS"}, "fake", rec).
		Complete(context.Background(), "p", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Verdict: PASS", out)

	_, err = Instrument(fakeCompleter{err: ErrUnavailable}, "fake", rec).
		Complete(context.Background(), "p", time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)
}
