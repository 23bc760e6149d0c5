// Package regress implements the regression estimators, data partitioning,
// cross-validation and error metrics used to model sale prices.
package regress

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Regressor is a fit/predict estimator over dense float rows.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// ModelFitError reports a numerical failure while fitting an estimator.
type ModelFitError struct {
	Model string
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("regress: fit %s: %v", e.Model, e.Err)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}

// checkXY validates shape and finiteness of training data and returns the
// number of features.
func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, eris.New("no training rows")
	}
	if len(X) != len(y) {
		return 0, eris.Errorf("feature rows (%d) and targets (%d) differ", len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, eris.New("no feature columns")
	}
	for i, row := range X {
		if len(row) != p {
			return 0, eris.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, eris.Errorf("non-finite feature %d at row %d", j, i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, eris.Errorf("non-finite target at row %d", i)
		}
	}
	return p, nil
}

func checkRows(X [][]float64, p int) error {
	for i, row := range X {
		if len(row) != p {
			return eris.Errorf("regress: predict row %d has %d features, want %d", i, len(row), p)
		}
	}
	return nil
}
