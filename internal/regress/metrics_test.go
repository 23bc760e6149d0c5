package regress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	truth := []float64{3, -0.5, 2, 7}
	pred := []float64{2.5, 0, 2, 8}

	m, err := Score(truth, pred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(0.375), m.RMSE, 1e-9)
	// 1 - 1.5 / 29.1875
	assert.InDelta(t, 0.9486081370449679, m.R2, 1e-9)
}

func TestR2_ConstantTruth(t *testing.T) {
	r2, err := R2([]float64{4, 4}, []float64{4, 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	r2, err = R2([]float64{4, 4}, []float64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
}

func TestR2_WorseThanMean(t *testing.T) {
	r2, err := R2([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, -3.0, r2, 1e-9)
}

func TestMetrics_Errors(t *testing.T) {
	_, err := MAE(nil, nil)
	assert.Error(t, err)
	_, err = MSE([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = RMSE([]float64{}, []float64{})
	assert.Error(t, err)
	_, err = R2([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
	_, err = Score(nil, nil)
	assert.Error(t, err)
}
