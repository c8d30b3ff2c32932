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
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/pipeline"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for onboarding requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ctx, env.Orchestrator, env.Cache),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serveUntilDone(ctx, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type consultaRequest struct {
	CNPJ    string `json:"cnpj"`
	Force   bool   `json:"force"`
	SkipERP bool   `json:"skip_erp"`
}

// buildRouter wires the HTTP routes. Consultas run on ctx rather than the
// request context so a dropped client does not abort a half-persisted run.
func buildRouter(ctx context.Context, runner pipeline.Runner, cache store.CacheStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/consultas", func(w http.ResponseWriter, req *http.Request) {
		var body consultaRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.CNPJ == "" {
			respondError(w, http.StatusBadRequest, "cnpj is required")
			return
		}
		if runner == nil {
			respondError(w, http.StatusServiceUnavailable, "pipeline not configured")
			return
		}

		result, err := runner.Run(ctx, body.CNPJ, pipeline.RunOptions{Force: body.Force, SkipERP: body.SkipERP})
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			respondError(w, http.StatusConflict, err.Error())
		case err != nil && resilience.KindOf(err) == resilience.KindValidation:
			respondError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			zap.L().Error("webhook consulta failed", zap.String("cnpj", body.CNPJ), zap.Error(err))
			if result != nil {
				respondJSON(w, http.StatusInternalServerError, result)
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
		default:
			respondJSON(w, http.StatusOK, result)
		}
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			entries, err := cache.List(req.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if entries == nil {
				entries = []model.CacheEntry{}
			}
			respondJSON(w, http.StatusOK, entries)
		})
		r.Get("/{cnpj}", func(w http.ResponseWriter, req *http.Request) {
			entry, err := cache.Get(req.Context(), chi.URLParam(req, "cnpj"))
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if entry == nil {
				respondError(w, http.StatusNotFound, "no cached consulta")
				return
			}
			respondJSON(w, http.StatusOK, entry)
		})
		r.Delete("/{cnpj}", func(w http.ResponseWriter, req *http.Request) {
			if err := cache.Delete(req.Context(), chi.URLParam(req, "cnpj")); err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
