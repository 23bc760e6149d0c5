package regress

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Metrics are held-out error and goodness-of-fit scores for one model.
type Metrics struct {
	MAE  float64 `json:"mae" yaml:"mae"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
	R2   float64 `json:"r2" yaml:"r2"`
}

// Score computes MAE, RMSE and R² of pred against truth.
func Score(truth, pred []float64) (Metrics, error) {
	mae, err := MAE(truth, pred)
	if err != nil {
		return Metrics{}, err
	}
	rmse, err := RMSE(truth, pred)
	if err != nil {
		return Metrics{}, err
	}
	r2, err := R2(truth, pred)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{MAE: mae, RMSE: rmse, R2: r2}, nil
}

func checkPair(truth, pred []float64) error {
	if len(truth) == 0 {
		return eris.New("regress: no values to score")
	}
	if len(truth) != len(pred) {
		return eris.Errorf("regress: %d targets but %d predictions", len(truth), len(pred))
	}
	return nil
}

// MAE is the mean absolute error.
func MAE(truth, pred []float64) (float64, error) {
	if err := checkPair(truth, pred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth)), nil
}

// MSE is the mean squared error.
func MSE(truth, pred []float64) (float64, error) {
	if err := checkPair(truth, pred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range truth {
		d := truth[i] - pred[i]
		sum += d * d
	}
	return sum / float64(len(truth)), nil
}

// RMSE is the square root of MSE.
func RMSE(truth, pred []float64) (float64, error) {
	mse, err := MSE(truth, pred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2 is the coefficient of determination. A constant truth vector scores 1
// when predicted exactly and 0 otherwise.
func R2(truth, pred []float64) (float64, error) {
	if err := checkPair(truth, pred); err != nil {
		return 0, err
	}
	mean := stat.Mean(truth, nil)
	var ssTot, ssRes float64
	for i := range truth {
		d := truth[i] - mean
		ssTot += d * d
		r := truth[i] - pred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(pred, truth, nil), nil
}
