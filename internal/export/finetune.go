package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"ava/internal/core"
)

// fineTuneSystemPrompt is the fixed system message for every fine-tune
// record — it names the task the assistant payload below is training
// toward, mirroring the generative client's own evaluation prompt role
// (internal/generative), not a per-record value.
const fineTuneSystemPrompt = "You are AVA, a real-time behavioral intervention assistant. " +
	"Given a shopper's session context and recent events, score intent, friction, " +
	"clarity, receptivity and value, then recommend the intervention action."

type fineTuneMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fineTuneRecord struct {
	Messages []fineTuneMessage `json:"messages"`
}

// fineTuneUserContext is the observed input half of the record: the session
// snapshot and the events the evaluator consumed, serialized as the "user"
// message content.
type fineTuneUserContext struct {
	Session core.Session      `json:"session"`
	Events  []core.TrackEvent `json:"events"`
}

// fineTuneAssistantPayload is the target output half, per spec.md §6's
// exact shape: {narrative, detected_frictions, signals, recommended_action,
// reasoning}.
type fineTuneAssistantPayload struct {
	Narrative         string            `json:"narrative"`
	DetectedFrictions []string          `json:"detected_frictions"`
	Signals           core.MSWIMSignals `json:"signals"`
	RecommendedAction string            `json:"recommended_action"`
	Reasoning         string            `json:"reasoning"`
}

// WriteFineTuneJSONL writes one {messages:[...]} record per line, suitable
// for supervised fine-tuning. TrainingDatapoint has no persisted per-
// evaluation Reasoning string (only the MSWIM engine's transient
// MSWIMResult.Reasoning does, and that is not part of the immutable
// training record) — reasoning is reconstructed from the persisted
// decision/tier/gate fields, which is the closest available evidence.
func WriteFineTuneJSONL(w io.Writer, datapoints []core.TrainingDatapoint) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, dp := range rowsOf(datapoints) {
		userCtx, err := json.Marshal(fineTuneUserContext{
			Session: dp.SessionContextSnapshot,
			Events:  dp.EventsSnapshot,
		})
		if err != nil {
			return writeErr("export.WriteFineTuneJSONL.marshalUser", err)
		}
		assistant, err := json.Marshal(fineTuneAssistantPayload{
			Narrative:         dp.Narrative,
			DetectedFrictions: dp.DetectedFrictions,
			Signals:           dp.Signals,
			RecommendedAction: dp.ActionCode,
			Reasoning:         reasoningFor(dp),
		})
		if err != nil {
			return writeErr("export.WriteFineTuneJSONL.marshalAssistant", err)
		}

		record := fineTuneRecord{Messages: []fineTuneMessage{
			{Role: "system", Content: fineTuneSystemPrompt},
			{Role: "user", Content: string(userCtx)},
			{Role: "assistant", Content: string(assistant)},
		}}
		if err := enc.Encode(record); err != nil {
			return writeErr("export.WriteFineTuneJSONL.encode", err)
		}
	}
	return writeErr("export.WriteFineTuneJSONL.flush", bw.Flush())
}

func reasoningFor(r Row) string {
	gate := "none"
	if r.GateOverride != nil {
		gate = string(*r.GateOverride)
	}
	return fmt.Sprintf("tier=%s decision=%s gate_override=%s composite=%.1f",
		r.Tier(), r.Decision, gate, r.CompositeScore)
}
