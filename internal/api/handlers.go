package api

import (
	"encoding/json"
	"net/http"

	"ava/internal/apierr"
	"ava/internal/core"
)

// statusFor maps an apierr.Category to an HTTP status, falling back to 500
// for errors outside the taxonomy.
func statusFor(err error) int {
	switch apierr.CategoryOf(err) {
	case apierr.CategoryPermanentInput:
		return http.StatusBadRequest
	case apierr.CategoryConfigurationError:
		return http.StatusInternalServerError
	case apierr.CategoryInvariantViolation:
		return http.StatusUnprocessableEntity
	case apierr.CategoryRateLimited:
		return http.StatusTooManyRequests
	case apierr.CategoryTransientExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListScoringConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.ScoringConfigs.List(r.Context(), r.URL.Query().Get("site_url"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreateScoringConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.ScoringConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	if err := s.ScoringConfigs.Create(r.Context(), cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleUpdateScoringConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.ScoringConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	cfg.ID = muxVar(r, "id")
	if err := s.ScoringConfigs.Update(r.Context(), cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleActivateScoringConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.ScoringConfigs.Activate(r.Context(), muxVar(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteScoringConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.ScoringConfigs.Delete(r.Context(), muxVar(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRolloutStart(w http.ResponseWriter, r *http.Request) {
	ro, err := s.RolloutController.Start(r.Context(), muxVar(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ro)
}

func (s *Server) handleRolloutPromote(w http.ResponseWriter, r *http.Request) {
	ro, err := s.RolloutController.Promote(r.Context(), muxVar(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ro)
}

func (s *Server) handleRolloutPause(w http.ResponseWriter, r *http.Request) {
	ro, err := s.RolloutController.Pause(r.Context(), muxVar(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ro)
}

func (s *Server) handleRolloutRollback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	ro, err := s.RolloutController.Rollback(r.Context(), muxVar(r, "id"), body.Reason)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ro)
}
