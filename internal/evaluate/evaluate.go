// Package evaluate fits the linear and random-forest price models on a
// seeded train/test split and scores them on the held-out rows.
package evaluate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/property"
	"github.com/sells-group/treeprice/internal/regress"
)

// Options control the split, the forest and cross-validation.
type Options struct {
	TestSize float64
	Seed     int64
	Trees    int
	Folds    int
	Workers  int
}

// DefaultOptions returns an 80/20 split, 100 trees and 5 folds seeded with 42.
func DefaultOptions() Options {
	return Options{
		TestSize: 0.2,
		Seed:     42,
		Trees:    100,
		Folds:    5,
	}
}

// Split records which matrix rows were used for training and testing.
type Split struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// Importance is one feature's share of the forest's impurity decrease.
type Importance struct {
	Feature string  `json:"feature" yaml:"feature"`
	Value   float64 `json:"importance" yaml:"importance"`
}

// Result is the outcome of one training run.
type Result struct {
	Linear      regress.Metrics
	Forest      regress.Metrics
	CVScores    []float64
	CVMean      float64
	Model       *regress.RandomForest
	Split       Split
	Importances []Importance // descending
	Features    []string
	Target      string
	Elapsed     time.Duration
}

// TrainEvaluate splits m, fits both models on the training rows, scores them on
// the held-out rows and cross-validates the forest over all of m. Fit errors
// are returned as produced by the estimator.
func TrainEvaluate(ctx context.Context, m *features.Matrix, opts Options) (*Result, error) {
	start := time.Now()
	opts = withDefaults(opts)

	n := m.Len()
	if n < opts.Folds {
		return nil, &property.EmptyDatasetError{
			Reason: fmt.Sprintf("%d rows cannot make %d cross-validation folds", n, opts.Folds),
		}
	}

	trainIdx, testIdx, err := regress.TrainTestSplit(n, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, &property.EmptyDatasetError{Reason: err.Error()}
	}
	train, test := m.Rows(trainIdx), m.Rows(testIdx)

	log := zap.L().With(zap.String("component", "evaluate"))
	log.Info("training models",
		zap.Int("train_rows", train.Len()),
		zap.Int("test_rows", test.Len()),
		zap.Strings("features", m.Names),
	)

	lin := regress.NewLinearRegression()
	if err := lin.Fit(train.X, train.Y); err != nil {
		return nil, err
	}
	linMetrics, err := score(lin, test)
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: score linear")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "evaluate: cancelled")
	}

	rf := regress.NewRandomForest(opts.Trees, opts.Seed)
	rf.Workers = opts.Workers
	if err := rf.Fit(train.X, train.Y); err != nil {
		return nil, err
	}
	rfMetrics, err := score(rf, test)
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: score forest")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "evaluate: cancelled")
	}

	cv, err := regress.CrossValScore(func() regress.Regressor { return rf.Clone() }, m.X, m.Y, opts.Folds)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Linear:      linMetrics,
		Forest:      rfMetrics,
		CVScores:    cv,
		CVMean:      stat.Mean(cv, nil),
		Model:       rf,
		Split:       Split{Train: trainIdx, Test: testIdx},
		Importances: Rank(m.Names, rf.FeatureImportances()),
		Features:    append([]string(nil), m.Names...),
		Target:      m.Target,
		Elapsed:     time.Since(start),
	}

	log.Info("models evaluated",
		zap.Float64("linear_r2", res.Linear.R2),
		zap.Float64("forest_r2", res.Forest.R2),
		zap.Float64("cv_mean_r2", res.CVMean),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Rank pairs names with importances and sorts them by descending value.
// Ties keep feature order.
func Rank(names []string, importances []float64) []Importance {
	out := make([]Importance, len(names))
	for i, name := range names {
		out[i] = Importance{Feature: name}
		if i < len(importances) {
			out[i].Value = importances[i]
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

func score(model regress.Regressor, test *features.Matrix) (regress.Metrics, error) {
	pred, err := model.Predict(test.X)
	if err != nil {
		return regress.Metrics{}, err
	}
	return regress.Score(test.Y, pred)
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.TestSize == 0 {
		opts.TestSize = def.TestSize
	}
	if opts.Trees == 0 {
		opts.Trees = def.Trees
	}
	if opts.Folds == 0 {
		opts.Folds = def.Folds
	}
	return opts
}
