package api

import (
	"io"
	"log/slog"
	"net/http"

	"ava/internal/core"
	"ava/internal/repo"
)

// exportWriter is the shape shared by export.WriteJSONL/WriteCSV/
// WriteFineTuneJSONL, letting handleExport parameterize over format.
type exportWriter func(w io.Writer, datapoints []core.TrainingDatapoint) error

// handleExport builds a streaming-download handler for one export format:
// it loads the filtered datapoints and pipes them through writer directly
// to the response body, matching spec.md §6's three export formats.
func (s *Server) handleExport(contentType string, writer exportWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := repo.TrainingDatapointFilter{
			SiteURL:    r.URL.Query().Get("site_url"),
			FrictionID: r.URL.Query().Get("friction_id"),
		}
		if outcome := r.URL.Query().Get("outcome"); outcome != "" {
			status := core.InterventionStatus(outcome)
			filter.Outcome = &status
		}
		if tier := r.URL.Query().Get("tier"); tier != "" {
			t := core.Tier(tier)
			filter.Tier = &t
		}

		datapoints, err := s.TrainingDatapoints.List(r.Context(), filter)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if err := writer(w, datapoints); err != nil {
			// Headers are already sent; log only, the client sees a truncated body.
			slog.Warn("api: export stream failed", "error", err)
		}
	}
}
