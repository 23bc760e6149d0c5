// Package model holds the training-run records shared by the store, the
// CLI and the prediction server.
package model

import (
	"time"

	"github.com/sells-group/treeprice/internal/regress"
)

// RunStatus represents the current state of a training run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusComplete, RunStatusFailed:
		return true
	}
	return false
}

// RunInput records what a run was trained on.
type RunInput struct {
	TreesPath      string   `json:"trees_path"`
	PropertiesPath string   `json:"properties_path"`
	Features       []string `json:"features"`
	Target         string   `json:"target"`
	Seed           int64    `json:"seed"`
	TestSize       float64  `json:"test_size"`
	Estimators     int      `json:"estimators"`
	Folds          int      `json:"folds"`
}

// Run is one training run and, once finished, its outcome.
type Run struct {
	ID        string     `json:"id"`
	Input     RunInput   `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FeatureImportance is one feature's share of the forest's importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RunResult holds the metrics of a completed run.
type RunResult struct {
	Rows             int                 `json:"rows"`
	TrainRows        int                 `json:"train_rows"`
	TestRows         int                 `json:"test_rows"`
	ImputedHeights   int                 `json:"imputed_heights"`
	MedianTreeHeight float64             `json:"median_tree_height"`
	Linear           regress.Metrics     `json:"linear"`
	Forest           regress.Metrics     `json:"random_forest"`
	CVScores         []float64           `json:"cv_r2_scores"`
	CVMean           float64             `json:"cv_r2_mean"`
	Importances      []FeatureImportance `json:"feature_importances"`
	ModelPath        string              `json:"model_path,omitempty"`
	DurationMs       int64               `json:"duration_ms"`
}

// Prediction is a held-out sale priced by a run's forest.
type Prediction struct {
	Row       int     `json:"row"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}
