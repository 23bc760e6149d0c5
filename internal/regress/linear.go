package regress

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression is ordinary least squares with an intercept. The
// coefficients are the minimum-norm solution, so collinear or constant
// features do not fail the fit.
type LinearRegression struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// NewLinearRegression returns an unfitted model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit centers X and y and solves the centered system through a thin SVD.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return &ModelFitError{Model: "linear", Err: err}
	}
	n := len(X)

	xMean := make([]float64, p)
	var yMean float64
	for i, row := range X {
		for j, v := range row {
			xMean[j] += v
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	a := mat.NewDense(n, p, nil)
	b := mat.NewDense(n, 1, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v-xMean[j])
		}
		b.Set(i, 0, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return &ModelFitError{Model: "linear", Err: eris.New("svd factorization failed")}
	}

	// Singular values below this cutoff are treated as zero, as LAPACK gelsd does.
	rcond := math.Nextafter(1, 2) - 1
	rank := svd.Rank(rcond * float64(max(n, p)))

	coef := make([]float64, p)
	if rank > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, b, rank)
		for j := range coef {
			coef[j] = sol.At(j, 0)
		}
	}

	intercept := yMean
	for j, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return &ModelFitError{Model: "linear", Err: eris.Errorf("non-finite coefficient %d", j)}
		}
		intercept -= c * xMean[j]
	}

	m.Coef = coef
	m.Intercept = intercept
	return nil
}

// Predict evaluates intercept + X·coef for each row.
func (m *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if m.Coef == nil {
		return nil, eris.New("regress: linear model is not fitted")
	}
	if err := checkRows(X, len(m.Coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.Intercept
		for j, x := range row {
			v += m.Coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}
