package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/treeprice/internal/config"
	"github.com/sells-group/treeprice/internal/evaluate"
	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/model"
	"github.com/sells-group/treeprice/internal/property"
	"github.com/sells-group/treeprice/internal/regress"
	"github.com/sells-group/treeprice/internal/store"
)

const maxPredictBody = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve price predictions from a saved model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path := cfg.Model.Path
		if cmd.Flags().Changed("model-path") {
			path, _ = cmd.Flags().GetString("model-path")
		}
		art, err := regress.LoadArtifact(path)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(art, st, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("model", path),
			zap.String("run_id", art.RunID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// rateLimiter rejects requests beyond a global token bucket with 429.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			zap.L().Warn("rate limit exceeded",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// buildRouter wires the prediction API around art. Run history comes from st.
func buildRouter(art *regress.Artifact, st store.Store, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := sc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &predictHandler{art: art, store: st}
	r.Group(func(r chi.Router) {
		if sc.RateLimit > 0 {
			r.Use(newRateLimiter(sc.RateLimit, sc.Burst).Handler)
		}
		r.Get("/model", h.describe)
		r.Post("/predict", h.predict)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.listRuns)
			r.Get("/{id}", h.getRun)
			r.Get("/{id}/predictions", h.listPredictions)
		})
	})
	return r
}

type predictHandler struct {
	art   *regress.Artifact
	store store.Store
}

// predictRequest carries either one feature map or a batch of them.
type predictRequest struct {
	Features map[string]float64   `json:"features,omitempty"`
	Rows     []map[string]float64 `json:"rows,omitempty"`
}

type predictResponse struct {
	RunID       string    `json:"run_id,omitempty"`
	Target      string    `json:"target"`
	Features    []string  `json:"features"`
	Predictions []float64 `json:"predictions"`
}

type modelResponse struct {
	RunID       string                `json:"run_id,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Target      string                `json:"target"`
	Features    []string              `json:"features"`
	Estimators  int                   `json:"n_estimators"`
	Importances []evaluate.Importance `json:"feature_importances"`
}

func (h *predictHandler) describe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelResponse{
		RunID:       h.art.RunID,
		CreatedAt:   h.art.CreatedAt,
		Target:      h.art.Target,
		Features:    h.art.Features,
		Estimators:  len(h.art.Forest.Trees),
		Importances: evaluate.Rank(h.art.Features, h.art.Forest.FeatureImportances()),
	})
}

func (h *predictHandler) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows := req.Rows
	if req.Features != nil {
		rows = append([]map[string]float64{req.Features}, rows...)
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "features or rows is required")
		return
	}

	X := make([][]float64, len(rows))
	for i, values := range rows {
		row, err := featuresVector(h.art.Features, values)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("row %d: %v", i, err))
			return
		}
		X[i] = row
	}

	pred, err := h.art.Forest.Predict(X)
	if err != nil {
		zap.L().Error("predict failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		RunID:       h.art.RunID,
		Target:      h.art.Target,
		Features:    h.art.Features,
		Predictions: pred,
	})
}

func (h *predictHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Target: r.URL.Query().Get("target")}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = model.RunStatus(s)
		if !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", s))
			return
		}
	}
	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *predictHandler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *predictHandler) listPredictions(w http.ResponseWriter, r *http.Request) {
	preds, err := h.store.ListPredictions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (h *predictHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("store lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store lookup failed")
}

// featuresVector reports a missing feature by name.
func featuresVector(names []string, values map[string]float64) ([]float64, error) {
	row, err := features.Vector(names, values)
	var mc *property.MissingColumnError
	if errors.As(err, &mc) {
		return nil, eris.Errorf("missing feature %q", mc.Column)
	}
	return row, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().String("model-path", "", "model artifact (overrides model.path)")
	rootCmd.AddCommand(serveCmd)
}
