package regress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_SaveLoad(t *testing.T) {
	X, y := stepData(80, 21)
	rf := NewRandomForest(6, 42)
	require.NoError(t, rf.Fit(X, y))

	path := filepath.Join(t.TempDir(), "property_price_model.json")
	require.NoError(t, SaveArtifact(path, &Artifact{
		RunID:    "run-1",
		Features: []string{"x0", "x1"},
		Target:   "y",
		Forest:   rf,
	}))

	art, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, ArtifactVersion, art.FormatVersion)
	assert.Equal(t, "run-1", art.RunID)
	assert.Equal(t, []string{"x0", "x1"}, art.Features)
	assert.False(t, art.CreatedAt.IsZero())

	rows := [][]float64{{1, 0.3}, {8, 0.7}, {5, 0.1}}
	want, err := rf.Predict(rows)
	require.NoError(t, err)
	got, err := art.Forest.Predict(rows)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, rf.FeatureImportances(), art.Forest.FeatureImportances())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestSaveArtifact_Unfitted(t *testing.T) {
	err := SaveArtifact(filepath.Join(t.TempDir(), "m.json"), &Artifact{Forest: NewRandomForest(3, 1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unfitted")
}

func TestLoadArtifact_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(dir, "nope.json"), "load artifact"},
		{"garbage", write("garbage.json", "{"), "load artifact"},
		{"version", write("v2.json", `{"format_version": 2}`), "unsupported artifact version 2"},
		{"no trees", write("empty.json", `{"format_version": 1, "forest": {"trees": []}}`), "no trees"},
		{"feature mismatch", write("mismatch.json",
			`{"format_version": 1, "features": ["a"], "forest": {"n_features": 2, "trees": [{"nodes": [{"f": -1, "v": 1, "n": 1}]}]}}`),
			"forest expects 2"},
		{"empty tree", write("emptytree.json",
			`{"format_version": 1, "features": ["a"], "forest": {"n_features": 1, "trees": [{"nodes": []}]}}`),
			"tree 0: empty tree"},
		{"self loop", write("loop.json",
			`{"format_version": 1, "features": ["a"], "forest": {"n_features": 1, "trees": [{"nodes": [{"f": 0, "t": 1, "l": 0, "r": 0, "v": 1, "n": 2}]}]}}`),
			"node 0 has child 0"},
		{"child out of range", write("range.json",
			`{"format_version": 1, "features": ["a"], "forest": {"n_features": 1, "trees": [{"nodes": [{"f": 0, "t": 1, "l": 1, "r": 5, "v": 1, "n": 2}, {"f": -1, "v": 1, "n": 1}]}]}}`),
			"node 0 has child 5"},
		{"feature out of range", write("feature.json",
			`{"format_version": 1, "features": ["a"], "forest": {"n_features": 1, "trees": [{"nodes": [{"f": 3, "t": 1, "l": 1, "r": 2, "v": 1, "n": 2}, {"f": -1, "v": 1, "n": 1}, {"f": -1, "v": 2, "n": 1}]}]}}`),
			"splits on feature 3 of 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifact(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
