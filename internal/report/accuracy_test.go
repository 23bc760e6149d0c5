package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/regress"
)

func accuracyMatrix() *features.Matrix {
	m := &features.Matrix{Names: []string{"x"}, Target: "y"}
	for i := 0; i < 10; i++ {
		m.X = append(m.X, []float64{float64(i)})
		m.Y = append(m.Y, 2*float64(i))
	}
	return m
}

func TestAccuracy_Linear(t *testing.T) {
	m := accuracyMatrix()
	lin := regress.NewLinearRegression()
	require.NoError(t, lin.Fit(m.X, m.Y))

	r, err := Accuracy(lin, m, []int{7, 2})
	require.NoError(t, err)
	require.Len(t, r.Points, 2)
	assert.Equal(t, 7, r.Points[0].Row)
	assert.Equal(t, 14.0, r.Points[0].Actual)
	assert.InDelta(t, 14.0, r.Points[0].Predicted, 1e-9)
	assert.InDelta(t, 0.0, r.Points[1].Residual, 1e-9)
	assert.Equal(t, 4.0, r.MinActual)
	assert.Equal(t, 14.0, r.MaxActual)
	assert.InDelta(t, 1.0, r.Metrics.R2, 1e-9)
	assert.Empty(t, r.Importances)
}

func TestAccuracy_ForestImportances(t *testing.T) {
	m := accuracyMatrix()
	rf := regress.NewRandomForest(5, 42)
	require.NoError(t, rf.Fit(m.X, m.Y))

	r, err := Accuracy(rf, m, []int{0, 5, 9})
	require.NoError(t, err)
	require.Len(t, r.Importances, 1)
	assert.Equal(t, "x", r.Importances[0].Feature)
	assert.InDelta(t, 1.0, r.Importances[0].Value, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, WriteAccuracy(&buf, r))
	assert.Contains(t, buf.String(), "Actual vs Predicted Prices (3 held-out sales")
	assert.Contains(t, buf.String(), "x: 1.0000")
}

func TestAccuracy_Errors(t *testing.T) {
	m := accuracyMatrix()
	_, err := Accuracy(regress.NewLinearRegression(), m, nil)
	assert.Error(t, err)

	_, err = Accuracy(regress.NewLinearRegression(), m, []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not fitted")
}
