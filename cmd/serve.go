package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		// Background availability checker
		checker := monitoring.NewChecker(eng.aggregator, cfg.Monitoring)
		go checker.Run(ctx)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /api/search", eng.handleSearch)

		mux.HandleFunc("GET /api/probe", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, eng.aggregator.ProbeAll(r.Context()))
		})

		mux.HandleFunc("GET /api/breakers", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, eng.aggregator.BreakerSnapshots())
		})

		mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, eng.collector.Snapshot())
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// handleSearch runs one aggregated search with the recovery chain behind it.
func (e *engine) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string   `json:"type"`
		Value   string   `json:"value"`
		Sources []string `json:"sources,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	st, err := model.ParseSearchType(req.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown search type"})
		return
	}
	q, err := model.NewQuery(st, req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must not be empty"})
		return
	}

	ctx := r.Context()
	if cfg.Search.DeadlineSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Search.DeadlineSecs)*time.Second)
		defer cancel()
	}

	result, err := e.aggregator.SearchAll(ctx, q, req.Sources)
	if err != nil {
		result, err = e.recovery.Run(ctx, q, req.Sources, err)
		if err != nil {
			zap.L().Error("search and recovery failed",
				zap.String("query", q.Redacted()),
				zap.Error(err),
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
