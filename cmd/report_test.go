package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnewstein/tf-permute/sim"
)

func TestWriteReport_HeaderAndJSON(t *testing.T) {
	// GIVEN a finished in-process run
	cfg := sim.NewSimConfig(4, 2, 0.5, 1, 10)
	res := &sim.Result{
		Histogram:            sim.Histogram{6, 3, 1, 0},
		Trials:               10,
		ZeroExpressionTotal:  5,
		ZeroExpressionTrials: 10,
	}
	r := newReport(cfg, sim.NewInProcessBackend(4, 2), res, 1500*time.Millisecond)

	// WHEN written
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, r))

	// THEN a header line precedes a JSON document
	header, body, ok := strings.Cut(buf.String(), "\n")
	require.True(t, ok)
	assert.Equal(t, "=== Simulation Results ===", header)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, "in-process", decoded["backend"])
	assert.Equal(t, 0.5, decoded["average_zero_expression"])
	assert.Equal(t, []any{6.0, 3.0, 1.0, 0.0}, decoded["histogram"])
	assert.Equal(t, 1.5, decoded["elapsed_s"])
	assert.NotContains(t, decoded, "chunks", "finite runs omit the chunk count")
}

func TestNewReport_UnknownZeroExpressionIsNull(t *testing.T) {
	// GIVEN a result from a backend without zero-expression statistics
	res := &sim.Result{Histogram: sim.Histogram{2, 0}, Trials: 2}

	r := newReport(sim.NewSimConfig(2, 1, 0.1, 1, 2), sim.NewInProcessBackend(2, 1), res, 0)

	assert.Nil(t, r.AverageZeroExpression)
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, r))
	assert.Contains(t, buf.String(), `"average_zero_expression": null`)
}

func TestWritePresets_SortedByName(t *testing.T) {
	cfg := PresetsConfig{Presets: map[string]Preset{
		"zeta":  {NCells: 2, NGenes: 1},
		"alpha": {NCells: 3, NGenes: 1, Description: "first"},
	}}

	var buf bytes.Buffer
	require.NoError(t, writePresets(&buf, cfg))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "alpha"))
	assert.Contains(t, lines[0], "first")
	assert.True(t, strings.HasPrefix(lines[1], "zeta"))
}

func TestBackendName(t *testing.T) {
	assert.Equal(t, "in-process", backendName(sim.NewInProcessBackend(1, 1)))
}
