package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/treeprice/internal/evaluate"
	"github.com/sells-group/treeprice/internal/regress"
)

func testSummary() *Summary {
	return &Summary{
		Features:  []string{"Tree_Height_Value", "Year", "Month"},
		Target:    "Price",
		TrainRows: 8,
		TestRows:  2,
		Linear:    regress.Metrics{MAE: 1.234, RMSE: 2.5, R2: 0.5},
		Forest:    regress.Metrics{MAE: 3, RMSE: 4, R2: 0.9},
		CVScores:  []float64{0.5, 0.25},
		CVMean:    0.4,
		Importances: []evaluate.Importance{
			{Feature: "Tree_Height_Value", Value: 0.75},
			{Feature: "Year", Value: 0.25},
		},
	}
}

func TestWriteText(t *testing.T) {
	s := testSummary()
	s.Importances = nil

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, s))
	assert.Equal(t, `Linear Regression Performance:
MAE: 1.23, RMSE: 2.50, R^2: 0.50

Random Forest Performance:
MAE: 3.00, RMSE: 4.00, R^2: 0.90
Cross-Validation R^2 Scores: [0.5 0.25]
Average CV R^2 Score: 0.40
`, buf.String())
}

func TestWriteText_Importances(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, testSummary()))
	out := buf.String()
	assert.Contains(t, out, "Feature Importances:\n")
	assert.Regexp(t, `Tree_Height_Value\s+0\.7500`, out)
	assert.Regexp(t, `Year\s+0\.2500`, out)
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", testSummary()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Price", got["target"])
	assert.Equal(t, []any{0.5, 0.25}, got["cv_r2_scores"])
	rf := got["random_forest"].(map[string]any)
	assert.Equal(t, 0.9, rf["r2"])
	assert.NotContains(t, got, "exploration")
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "YAML", testSummary()))

	var got Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testSummary(), &got)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", testSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": "text", " Text ": "text", "json": "json", "yaml": "yaml"} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestFormatScores(t *testing.T) {
	assert.Equal(t, "[0.12345679 1 -0.5]", FormatScores([]float64{0.123456789, 1, -0.5}))
	assert.Equal(t, "[]", FormatScores(nil))
}

func TestNewSummary(t *testing.T) {
	res := &evaluate.Result{
		Linear:   regress.Metrics{R2: 0.1},
		Forest:   regress.Metrics{R2: 0.2},
		CVScores: []float64{0.3},
		CVMean:   0.3,
		Split:    evaluate.Split{Train: []int{0, 1, 2}, Test: []int{3}},
		Features: []string{"a"},
		Target:   "Price",
	}
	s := NewSummary(res)
	assert.Equal(t, 3, s.TrainRows)
	assert.Equal(t, 1, s.TestRows)
	assert.Equal(t, 0.2, s.Forest.R2)
	assert.Equal(t, []string{"a"}, s.Features)
}
