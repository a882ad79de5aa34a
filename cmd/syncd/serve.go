package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/grumblehq/syncd/internal/config"
	syncpkg "github.com/grumblehq/syncd/internal/sync"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived sync service",
	Long: `Start an HTTP service that runs a sync cycle on a fixed interval and
exposes two endpoints:

  POST /sync    trigger a cycle now (409 if one is already running)
  GET  /health  service liveness plus last-sync freshness`,
	Run: func(cmd *cobra.Command, args []string) {
		orchestrator, err := buildOrchestrator()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		orchestrator.OnProgress(func(stage string, processed, total int) {
			log.Printf("[serve] %s: %d/%d", stage, processed, total)
		})

		srv := &server{orchestrator: orchestrator}

		// Background schedule. The HTTP trigger and the ticker share the
		// orchestrator's single-flight guard, so overlap resolves itself.
		ticker := time.NewTicker(config.SyncInterval)
		defer ticker.Stop()
		go func() {
			srv.runScheduled()
			for range ticker.C {
				srv.runScheduled()
			}
		}()

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		router.Use(middleware.Recoverer)
		router.Post("/sync", srv.handleSync)
		router.Get("/health", srv.handleHealth)

		log.Printf("[serve] listening on %s (interval %s)", serveAddr, config.SyncInterval)
		if err := http.ListenAndServe(serveAddr, router); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

type server struct {
	orchestrator *syncpkg.Orchestrator
}

func (s *server) runScheduled() {
	result, err := s.orchestrator.Sync(context.Background())
	switch {
	case errors.Is(err, syncpkg.ErrSyncInProgress):
		log.Printf("[serve] scheduled sync skipped: already running")
	case err != nil:
		log.Printf("[serve] scheduled sync failed: %v", err)
	default:
		log.Printf("[serve] scheduled sync %s: %d new items, %d groups, degraded=%v",
			result.RunID, result.NewItems, result.Groups, result.Degraded())
	}
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	// A triggered cycle runs to completion like a scheduled one; a caller
	// disconnect must not cancel in-flight AI or store calls mid-cycle.
	result, err := s.orchestrator.Sync(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, syncpkg.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, err := store.LoadSyncState(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := "ok"
	var lastSync *time.Time
	if state == nil {
		status = "no sync yet"
	} else {
		lastSync = &state.LastSync
		if time.Since(state.LastSync) > 2*config.SyncInterval {
			status = "stale"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"state":     s.orchestrator.State().String(),
		"last_sync": lastSync,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[serve] writing response: %v", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "listen address")
	rootCmd.AddCommand(serveCmd)
}
