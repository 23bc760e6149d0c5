package report

import (
	"fmt"
	"io"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/treeprice/internal/evaluate"
	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/regress"
)

// Point is one held-out sale with the model's estimate.
type Point struct {
	Row       int     `json:"row" yaml:"row"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Predicted float64 `json:"predicted" yaml:"predicted"`
	Residual  float64 `json:"residual" yaml:"residual"`
}

// AccuracyReport pairs actual and predicted prices on the held-out rows and
// lists the model's feature importances. MinActual and MaxActual bound the
// identity line of an actual-vs-predicted plot.
type AccuracyReport struct {
	Points      []Point               `json:"points" yaml:"points"`
	MinActual   float64               `json:"min_actual" yaml:"min_actual"`
	MaxActual   float64               `json:"max_actual" yaml:"max_actual"`
	Metrics     regress.Metrics       `json:"metrics" yaml:"metrics"`
	Importances []evaluate.Importance `json:"feature_importances,omitempty" yaml:"feature_importances,omitempty"`
}

// Accuracy predicts the rows of m selected by testIdx with model.
func Accuracy(model regress.Regressor, m *features.Matrix, testIdx []int) (*AccuracyReport, error) {
	if len(testIdx) == 0 {
		return nil, eris.New("report: no held-out rows")
	}
	test := m.Rows(testIdx)
	pred, err := model.Predict(test.X)
	if err != nil {
		return nil, eris.Wrap(err, "report: predict held-out rows")
	}
	metrics, err := regress.Score(test.Y, pred)
	if err != nil {
		return nil, eris.Wrap(err, "report: score held-out rows")
	}

	r := &AccuracyReport{
		Points:    make([]Point, len(testIdx)),
		MinActual: math.Inf(1),
		MaxActual: math.Inf(-1),
		Metrics:   metrics,
	}
	for i, row := range testIdx {
		r.Points[i] = Point{Row: row, Actual: test.Y[i], Predicted: pred[i], Residual: test.Y[i] - pred[i]}
		r.MinActual = math.Min(r.MinActual, test.Y[i])
		r.MaxActual = math.Max(r.MaxActual, test.Y[i])
	}
	if rf, ok := model.(*regress.RandomForest); ok {
		r.Importances = evaluate.Rank(m.Names, rf.FeatureImportances())
	}
	return r, nil
}

// WriteAccuracy prints the points and importances as text.
func WriteAccuracy(w io.Writer, r *AccuracyReport) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("Actual vs Predicted Prices (%d held-out sales, range %.2f to %.2f):\n", len(r.Points), r.MinActual, r.MaxActual)
	for _, p := range r.Points {
		printf("  row %d: actual %.2f, predicted %.2f, residual %.2f\n", p.Row, p.Actual, p.Predicted, p.Residual)
	}
	printf("MAE: %.2f, RMSE: %.2f, R^2: %.2f\n", r.Metrics.MAE, r.Metrics.RMSE, r.Metrics.R2)
	if len(r.Importances) > 0 {
		printf("Feature Importances:\n")
		for _, imp := range r.Importances {
			printf("  %s: %.4f\n", imp.Feature, imp.Value)
		}
	}
	return eris.Wrap(err, "report: write accuracy")
}
