//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/treeprice/internal/config"
	"github.com/sells-group/treeprice/internal/model"
	"github.com/sells-group/treeprice/internal/regress"
	"github.com/sells-group/treeprice/internal/store"
)

// testArtifact fits a small forest where price rises with tree height.
func testArtifact(t *testing.T) *regress.Artifact {
	t.Helper()
	var X [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		h := float64(i % 20)
		X = append(X, []float64{h, float64(2010 + i%8), float64(1 + i%12)})
		y = append(y, 100000+10000*h)
	}
	rf := regress.NewRandomForest(5, 42)
	require.NoError(t, rf.Fit(X, y))
	return &regress.Artifact{
		RunID:    "run-1",
		Features: []string{"Tree_Height_Value", "Year", "Month"},
		Target:   "Price",
		Forest:   rf,
	}
}

func newTestRouter(t *testing.T, sc config.ServerConfig) (http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemory()
	return buildRouter(testArtifact(t), st, sc), st
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{})
	w := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_PredictSingle(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{})
	w := do(h, http.MethodPost, "/predict", `{"features": {"Tree_Height_Value": 15, "Year": 2012, "Month": 3}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "Price", resp.Target)
	require.Len(t, resp.Predictions, 1)
	assert.Greater(t, resp.Predictions[0], 200000.0)
}

func TestRouter_PredictBatch(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{})
	w := do(h, http.MethodPost, "/predict", `{"rows": [
		{"Tree_Height_Value": 1, "Year": 2012, "Month": 3},
		{"Tree_Height_Value": 18, "Year": 2012, "Month": 3}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)
	assert.Less(t, resp.Predictions[0], resp.Predictions[1])
}

func TestRouter_PredictErrors(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{})

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"malformed", `{"features":`, http.StatusBadRequest, "invalid request body"},
		{"empty", `{}`, http.StatusBadRequest, "features or rows is required"},
		{"missing feature", `{"features": {"Tree_Height_Value": 3, "Year": 2012}}`, http.StatusUnprocessableEntity, `Month`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestRouter_Model(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{})
	w := do(h, http.MethodGet, "/model", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp modelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Estimators)
	assert.Equal(t, []string{"Tree_Height_Value", "Year", "Month"}, resp.Features)
	require.Len(t, resp.Importances, 3)
	assert.Equal(t, "Tree_Height_Value", resp.Importances[0].Feature)
}

func TestRouter_Runs(t *testing.T) {
	h, st := newTestRouter(t, config.ServerConfig{})
	ctx := context.Background()
	run, err := st.CreateRun(ctx, model.RunInput{Target: "Price"})
	require.NoError(t, err)
	_, err = st.SavePredictions(ctx, run.ID, []model.Prediction{{Row: 3, Actual: 10, Predicted: 11}})
	require.NoError(t, err)

	w := do(h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	w = do(h, http.MethodGet, "/runs/"+run.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = do(h, http.MethodGet, "/runs/"+run.ID+"/predictions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"row":3,"actual":10,"predicted":11}]`, w.Body.String())

	w = do(h, http.MethodGet, "/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodGet, "/runs?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{RateLimit: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/model", "").Code)
	w := do(h, http.MethodGet, "/model", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// health checks bypass the limiter
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, config.ServerConfig{AllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
