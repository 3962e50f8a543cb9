package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"fsmbus/pkg/correlation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InjectsCorrelationAndService(t *testing.T) {
	t.Parallel()

	// given
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Service: "billing", Output: &buf})
	ctx := correlation.WithID(context.Background(), "corr-7")

	// when
	l.InfoContext(ctx, "message consumed", "topic", "fsm.contracts")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "message consumed", record["msg"])
	assert.Equal(t, "corr-7", record["correlation_id"])
	assert.Equal(t, "billing", record["service"])
	assert.Equal(t, "fsm.contracts", record["topic"])
}

func TestNew_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestContextWith_AddsAttrs(t *testing.T) {
	t.Parallel()

	// given
	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	ctx := ContextWith(context.Background(), slog.String("consumer_group", "g1"))
	ctx = ContextWith(ctx, slog.Int("partition", 2))

	// when
	l.InfoContext(ctx, "handled")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "g1", record["consumer_group"])
	assert.EqualValues(t, 2, record["partition"])
	assert.NotContains(t, record, "correlation_id")
}
