// Package export renders persisted TrainingDatapoints into the three
// formats spec.md §6 names: JSONL (one record per line), CSV (fixed column
// order for spreadsheet/BI tooling) and fine-tune JSONL (chat-message
// records suitable for supervised fine-tuning). No CSV/JSONL library
// appears anywhere in the example corpus, so this package uses the standard
// library's encoding/json and encoding/csv directly — see DESIGN.md for the
// justification.
package export

import (
	"fmt"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
)

// Row wraps a TrainingDatapoint with fields derived rather than persisted
// directly: the tier it fired at (from InterventionType.Tier, the same
// derivation internal/store/supabase's TierOutcomeCrossTab uses), the
// session's age at assembly time, and the page type at fire.
type Row struct {
	core.TrainingDatapoint
}

// Tier returns the MSWIM tier this datapoint's intervention fired at.
func (r Row) Tier() core.Tier {
	return r.InterventionType.Tier()
}

// SessionAgeSec returns the session's age, in seconds, at the moment this
// datapoint was assembled.
func (r Row) SessionAgeSec() float64 {
	return r.CreatedAt.Sub(r.SessionContextSnapshot.StartedAt).Seconds()
}

// PageType returns the page type of the most recent event in the
// datapoint's events snapshot, or core.PageOther if the snapshot is empty.
func (r Row) PageType() core.PageType {
	if len(r.EventsSnapshot) == 0 {
		return core.PageOther
	}
	return r.EventsSnapshot[len(r.EventsSnapshot)-1].PageType
}

func rowsOf(datapoints []core.TrainingDatapoint) []Row {
	rows := make([]Row, len(datapoints))
	for i, dp := range datapoints {
		rows[i] = Row{dp}
	}
	return rows
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return apierr.Transient(op, fmt.Errorf("export: %w", err))
}
