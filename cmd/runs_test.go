//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/treeprice/internal/model"
	"github.com/sells-group/treeprice/internal/regress"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			Input:  model.RunInput{Target: "Price"},
			Status: model.RunStatusComplete,
			Result: &model.RunResult{
				Linear: regress.Metrics{R2: 0.12},
				Forest: regress.Metrics{R2: 0.67},
				CVMean: 0.41,
			},
			CreatedAt: now,
			UpdatedAt: now.Add(1500 * time.Millisecond),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Input:     model.RunInput{Target: "Price"},
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "FOREST_R2")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "0.67")
	assert.Contains(t, output, "0.41")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "1.5s")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestRunsStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{ID: "1", Status: model.RunStatusComplete, Result: &model.RunResult{CVMean: 0.3}, CreatedAt: now, UpdatedAt: now.Add(2 * time.Second)},
		{ID: "2", Status: model.RunStatusComplete, Result: &model.RunResult{CVMean: 0.5}, CreatedAt: now, UpdatedAt: now.Add(4 * time.Second)},
		{ID: "3", Status: model.RunStatusFailed, Error: "boom", CreatedAt: now, UpdatedAt: now},
		{ID: "4", Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.InDelta(t, 3.0, s.AvgDurSecs, 0.01)
	assert.Equal(t, "2", s.BestRunID)
	assert.InDelta(t, 0.5, s.BestCVMean, 1e-9)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	assert.Contains(t, buf.String(), "Total runs:")
	assert.Contains(t, buf.String(), "Avg duration:  3.0s")
	assert.Contains(t, buf.String(), "Best CV R^2:")
}

func TestRunsStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.AvgDurSecs)
	assert.Empty(t, s.BestRunID)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}
