package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"ava/internal/core"
)

// csvColumns is the fixed column order spec.md §6 names verbatim; callers
// must not reorder it, since downstream training pipelines key on position.
var csvColumns = []string{
	"id", "createdAt", "sessionId", "siteUrl", "deviceType", "referrerType",
	"isLoggedIn", "isRepeatVisitor", "cartValue", "cartItemCount",
	"sessionAgeSec", "pageType", "intentScore", "frictionScore",
	"clarityScore", "receptivityScore", "valueScore", "compositeScore",
	"tier", "decision", "gateOverride", "interventionType", "actionCode",
	"frictionId", "mswimScoreAtFire", "tierAtFire", "outcome",
	"conversionAction", "outcomeDelayMs", "totalInterventionsFired",
	"totalDismissals", "totalConversions", "frictionsFound",
}

// WriteCSV writes datapoints in csvColumns order with RFC 4180 escaping
// (encoding/csv's default quoting rules). mswimScoreAtFire/tierAtFire
// duplicate compositeScore/tier by design: both name the same evaluation
// outcome under the two column names spec.md §6 lists, since
// TrainingDatapoint records a decision's composite/tier exactly once.
func WriteCSV(w io.Writer, datapoints []core.TrainingDatapoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return writeErr("export.WriteCSV.header", err)
	}
	for _, dp := range rowsOf(datapoints) {
		if err := cw.Write(csvRecord(dp)); err != nil {
			return writeErr("export.WriteCSV.record", err)
		}
	}
	cw.Flush()
	return writeErr("export.WriteCSV.flush", cw.Error())
}

func csvRecord(r Row) []string {
	gateOverride := ""
	if r.GateOverride != nil {
		gateOverride = string(*r.GateOverride)
	}
	conversionAction := ""
	if r.ConversionAction != nil {
		conversionAction = *r.ConversionAction
	}
	counters := r.SessionContextSnapshot.RunningCounters
	tier := r.Tier()

	return []string{
		r.ID,
		timeString(r.CreatedAt),
		r.SessionID,
		r.SiteURL,
		string(r.SessionContextSnapshot.DeviceType),
		r.SessionContextSnapshot.ReferrerType,
		fmt.Sprintf("%t", r.SessionContextSnapshot.IsLoggedIn),
		fmt.Sprintf("%t", r.SessionContextSnapshot.IsRepeatVisitor),
		fmt.Sprintf("%.2f", r.SessionContextSnapshot.CartValue),
		fmt.Sprintf("%d", r.SessionContextSnapshot.CartItemCount),
		fmt.Sprintf("%.0f", r.SessionAgeSec()),
		string(r.PageType()),
		fmt.Sprintf("%d", r.Signals.Intent),
		fmt.Sprintf("%d", r.Signals.Friction),
		fmt.Sprintf("%d", r.Signals.Clarity),
		fmt.Sprintf("%d", r.Signals.Receptivity),
		fmt.Sprintf("%d", r.Signals.Value),
		fmt.Sprintf("%.2f", r.CompositeScore),
		string(tier),
		string(r.Decision),
		gateOverride,
		string(r.InterventionType),
		r.ActionCode,
		r.FrictionID,
		fmt.Sprintf("%.2f", r.CompositeScore),
		string(tier),
		string(r.Outcome),
		conversionAction,
		fmt.Sprintf("%d", r.OutcomeDelayMs),
		fmt.Sprintf("%d", counters.TotalInterventionsFired),
		fmt.Sprintf("%d", counters.TotalDismissals),
		fmt.Sprintf("%d", counters.TotalConversions),
		fmt.Sprintf("%d", len(r.DetectedFrictions)),
	}
}
