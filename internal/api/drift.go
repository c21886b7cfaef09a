package api

import (
	"net/http"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
	"ava/internal/webhooks"
)

func (s *Server) handleListDriftAlerts(w http.ResponseWriter, r *http.Request) {
	filter := repo.DriftAlertFilter{SiteURL: r.URL.Query().Get("site_url")}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		severity := core.AlertSeverity(sev)
		filter.Severity = &severity
	}
	if ackd := r.URL.Query().Get("acknowledged"); ackd != "" {
		val := ackd == "true"
		filter.Acknowledged = &val
	}

	alerts, err := s.DriftAlerts.List(r.Context(), filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledgeDriftAlert(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	if err := s.DriftAlerts.Acknowledge(r.Context(), id, time.Now()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if s.Emitter != nil {
		s.Emitter.Emit(webhooks.EventDriftAlertAcknowledged, r.URL.Query().Get("site_url"), map[string]interface{}{
			"alert_id": id,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
