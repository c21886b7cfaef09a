// Package api exposes AVA's admin and export surface over REST/JSON,
// grounded on the teacher's internal/api/server.go: a gorilla/mux router
// with a permissive CORS middleware and one HandleFunc per endpoint. Per
// SPEC_FULL.md §4.20 this is a thin adapter — enough to exercise
// internal/rollout, internal/drift, internal/export and the ScoringConfig
// store, not a full dashboard backend.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"ava/internal/drift"
	"ava/internal/export"
	"ava/internal/repo"
	"ava/internal/rollout"
	"ava/internal/webhooks"
)

// Server wires the admin/export HTTP surface over the core services.
type Server struct {
	ScoringConfigs     repo.ScoringConfigRepo
	Experiments        repo.ExperimentRepo
	Rollouts           repo.RolloutRepo
	DriftAlerts        repo.DriftAlertRepo
	TrainingDatapoints repo.TrainingDatapointRepo

	RolloutController *rollout.Controller
	DriftDetector     *drift.Detector

	// Emitter, if set, fires the EventDriftAlertAcknowledged webhook event
	// alongside the handlers that don't already run through a component
	// (drift.Detector, rollout.Controller) that emits on its own.
	Emitter webhooks.WebhookEmitter
}

// NewServer constructs the API server from its collaborators.
func NewServer(scoringConfigs repo.ScoringConfigRepo, experiments repo.ExperimentRepo, rollouts repo.RolloutRepo,
	driftAlerts repo.DriftAlertRepo, datapoints repo.TrainingDatapointRepo,
	rolloutController *rollout.Controller, driftDetector *drift.Detector) *Server {
	return &Server{
		ScoringConfigs:     scoringConfigs,
		Experiments:        experiments,
		Rollouts:           rollouts,
		DriftAlerts:        driftAlerts,
		TrainingDatapoints: datapoints,
		RolloutController:  rolloutController,
		DriftDetector:      driftDetector,
	}
}

// Router builds the mux.Router with every endpoint registered, matching the
// teacher's CORS-middleware-plus-HandleFunc-table layout.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/api/scoring-configs", s.handleListScoringConfigs).Methods(http.MethodGet)
	r.HandleFunc("/api/scoring-configs", s.handleCreateScoringConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/scoring-configs/{id}", s.handleUpdateScoringConfig).Methods(http.MethodPatch)
	r.HandleFunc("/api/scoring-configs/{id}/activate", s.handleActivateScoringConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/scoring-configs/{id}", s.handleDeleteScoringConfig).Methods(http.MethodDelete)

	r.HandleFunc("/api/rollouts/{id}/start", s.handleRolloutStart).Methods(http.MethodPost)
	r.HandleFunc("/api/rollouts/{id}/promote", s.handleRolloutPromote).Methods(http.MethodPost)
	r.HandleFunc("/api/rollouts/{id}/pause", s.handleRolloutPause).Methods(http.MethodPost)
	r.HandleFunc("/api/rollouts/{id}/rollback", s.handleRolloutRollback).Methods(http.MethodPost)

	r.HandleFunc("/api/drift-alerts", s.handleListDriftAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/drift-alerts/{id}/acknowledge", s.handleAcknowledgeDriftAlert).Methods(http.MethodPost)

	r.HandleFunc("/api/export/jsonl", s.handleExport("application/x-ndjson", export.WriteJSONL)).Methods(http.MethodGet)
	r.HandleFunc("/api/export/csv", s.handleExport("text/csv", export.WriteCSV)).Methods(http.MethodGet)
	r.HandleFunc("/api/export/finetune.jsonl", s.handleExport("application/x-ndjson", export.WriteFineTuneJSONL)).Methods(http.MethodGet)

	return r
}

// Start runs the HTTP server on addr, matching the teacher's
// fmt.Sprintf(":%d", port) + log.Printf + http.ListenAndServe shape.
func (s *Server) Start(addr string) error {
	slog.Info("api: listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeError(w, http.StatusBadRequest, fmt.Errorf(format, args...))
}
