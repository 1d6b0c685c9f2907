package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/provider-risk/internal/bundle"
	"github.com/sells-group/provider-risk/internal/scorer"
	"github.com/sells-group/provider-risk/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API server",
	Long: `Serve denial-risk predictions over HTTP. Requires a trained model
bundle; run the pipeline first.

Endpoints:
  GET  /health            liveness and model status
  POST /predict           score a raw feature map
  POST /predict/npi       score stored providers by NPI
  GET  /model/info        active bundle metadata
  GET  /providers/search  look up providers by NPI prefix or name`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.Int("port", 0, "listen port (overrides config)")
	f.String("model", "", "bundle key to serve (default: latest)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := loadBundle(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sc := scorer.New(b, st)
	port := intFlagOr(cmd, "port", cfg.Server.Port)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newRouter(sc, st, cfg.Models.Dir, cfg.Server.RatePerSecond, cfg.Server.RateBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("serve: listening",
			zap.Int("port", port),
			zap.String("bundle_key", b.Meta.Key),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter wires the prediction API. The rate limit is a single
// process-wide token bucket shared by all clients. modelsDir lets a
// request pin an older bundle by key.
func newRouter(sc *scorer.Scorer, st store.Store, modelsDir string, ratePerSecond float64, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(rate.Limit(ratePerSecond), burst))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"model_loaded": sc.Bundle() != nil,
			"model_key":    sc.Bundle().Meta.Key,
		})
	})

	r.Post("/predict", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProviderKey string             `json:"provider_key"`
			Model       string             `json:"model"`
			Features    map[string]float64 `json:"features"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Features) == 0 {
			writeError(w, http.StatusBadRequest, "features is required")
			return
		}

		active := sc
		if body.Model != "" && body.Model != sc.Bundle().Meta.Key {
			b, err := bundle.Load(modelsDir, body.Model)
			if err != nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("model %s not found", body.Model))
				return
			}
			active = scorer.New(b, st)
		}

		fs, err := active.ScoreFeatures(body.Features, scorer.DefaultTopFactors)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "scoring failed")
			zap.L().Error("serve: feature scoring failed", zap.Error(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider_key":       body.ProviderKey,
			"denial_probability": fs.Probability,
			"top_factors":        fs.TopFactors,
		})
	})

	r.Post("/predict/npi", func(w http.ResponseWriter, req *http.Request) {
		npis, err := decodeNPIs(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		preds, err := sc.ScoreNPIs(req.Context(), npis)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "scoring failed")
			zap.L().Error("serve: npi scoring failed", zap.Error(err))
			return
		}
		if len(preds) == 0 {
			writeError(w, http.StatusNotFound, "no stored features for the given NPIs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"predictions": preds,
			"count":       len(preds),
		})
	})

	r.Get("/model/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sc.Bundle().Meta)
	})

	r.Get("/providers/search", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		limit := 20
		if s := req.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		results, err := st.SearchProviders(req.Context(), q, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "search failed")
			zap.L().Error("serve: provider search failed", zap.Error(err))
			return
		}
		if results == nil {
			results = []store.SearchResult{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": results,
			"count":   len(results),
		})
	})

	return r
}

// decodeNPIs accepts {"npi": "..."} or {"npi": ["...", ...]}.
func decodeNPIs(req *http.Request) ([]string, error) {
	var body struct {
		NPI json.RawMessage `json:"npi"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.NPI) == 0 {
		return nil, fmt.Errorf("npi is required")
	}

	var one string
	if err := json.Unmarshal(body.NPI, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(body.NPI, &many); err == nil && len(many) > 0 {
		return many, nil
	}
	return nil, fmt.Errorf("npi must be a string or a non-empty array of strings")
}

func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
