package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ava/internal/apierr"
	"ava/internal/broadcast"
	"ava/internal/core"
	"ava/internal/mswim"
	"ava/internal/payload"
	"ava/internal/shadow"
)

// flush runs one full evaluation cycle for st, per §4.7 steps 1-8. It holds
// st.mu for its entire duration, serializing evaluations for this session;
// events arriving mid-flush wait on st.mu in Ingest, then enqueue into the
// cleared buffer and are picked up by the next flush.
func (m *Manager) flush(ctx context.Context, st *sessionState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.flushTimer != nil {
		st.flushTimer.Stop()
		st.flushTimer = nil
	}

	if st.buffer.len() == 0 {
		return
	}

	events := st.buffer.snapshot(m.deps.MaxContextEvents)
	counters := st.counters
	sess := st.session
	now := m.deps.Now()

	frictionIDs := detectedFrictionIDs(events)

	configID, evalEngine := "", m.deps.DefaultEvalEngine
	if m.deps.Variants != nil {
		if vConfigID, vEngine, ok := m.deps.Variants.ResolveOverride(ctx, sess.SiteURL, sess.SessionID); ok {
			configID = vConfigID
			if vEngine != "" {
				evalEngine = vEngine
			}
		}
	}

	cfg := m.deps.ConfigLoader.Load(ctx, sess.SiteURL, configID)

	sessionCtx := buildSessionCtx(sess, counters, frictionIDs, len(events), latestPageType(events), now)

	hint, usedEngine := m.resolveHint(ctx, evalEngine, sessionCtx, cfg, st, now, events)

	result := m.deps.Engine.Run(hint, sessionCtx, cfg)

	evalID := m.persistEvaluation(ctx, sess, usedEngine, result, hint, events, now)
	if evalID == "" {
		st.buffer.clear()
		return
	}

	if m.deps.ShadowEnabled && m.deps.Shadow != nil {
		m.runShadowComparison(ctx, sess, evalID, result, sessionCtx, cfg, now)
	}

	m.broadcastEvaluation(sess, evalID, result)

	if result.Decision == core.DecisionFire {
		m.fireIntervention(ctx, sess, evalID, result, sessionCtx, &st.counters, now)
	}

	st.session.RunningCounters = st.counters
	if m.deps.Sessions != nil {
		if err := m.deps.Sessions.UpdateCounters(ctx, sess.SessionID, st.counters); err != nil {
			slog.Error("session: failed to persist running counters", "session_id", sess.SessionID, "error", err)
		}
	}

	st.buffer.clear()
}

// resolveHint chooses the llm/fast/auto engine and returns the hint along
// with the engine actually used (which may differ from requested on
// fallback or auto's two-phase logic).
func (m *Manager) resolveHint(ctx context.Context, engine string, sessCtx mswim.SessionCtx, cfg core.ScoringConfig, st *sessionState, now time.Time, events []core.TrackEvent) (core.GenerativeHint, string) {
	switch engine {
	case "llm":
		if hint, ok := m.tryGenerative(ctx, sessCtx, st, now, events); ok {
			return hint, "llm"
		}
		return shadow.Synthesize(sessCtx), "fast"
	case "auto":
		fastHint := shadow.Synthesize(sessCtx)
		fastResult := m.deps.Engine.Run(fastHint, sessCtx, cfg)
		cooldownElapsed := now.Sub(st.lastGenerativeEvalAt) >= time.Duration(m.deps.AutoEngineCooldownSec)*time.Second
		if fastResult.CompositeScore >= float64(cfg.Thresholds.Nudge) && (st.lastGenerativeEvalAt.IsZero() || cooldownElapsed) {
			if hint, ok := m.tryGenerative(ctx, sessCtx, st, now, events); ok {
				return hint, "llm"
			}
		}
		return fastHint, "fast"
	default: // "fast"
		return shadow.Synthesize(sessCtx), "fast"
	}
}

func (m *Manager) tryGenerative(ctx context.Context, sessCtx mswim.SessionCtx, st *sessionState, now time.Time, events []core.TrackEvent) (core.GenerativeHint, bool) {
	if m.deps.Generative == nil {
		return core.GenerativeHint{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	hint, err := m.deps.Generative.Complete(callCtx, toPrompt(st.session, sessCtx, events))
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			slog.Warn("session: generative call failed, downgrading to fast engine", "category", apiErr.Category, "error", apiErr.Err)
		} else {
			slog.Warn("session: generative call failed, downgrading to fast engine", "error", err)
		}
		return core.GenerativeHint{}, false
	}
	st.lastGenerativeEvalAt = now
	return hint, true
}

func (m *Manager) runShadowComparison(ctx context.Context, sess core.Session, evalID string, prod core.MSWIMResult, sessCtx mswim.SessionCtx, cfg core.ScoringConfig, now time.Time) {
	if m.deps.ShadowComparisons == nil {
		return
	}
	cmp := m.deps.Shadow.Compare(newID(), sess.SessionID, sess.SiteURL, evalID, prod, sessCtx, cfg, now)
	if err := m.deps.ShadowComparisons.Create(ctx, cmp); err != nil {
		slog.Error("session: failed to persist shadow comparison", "session_id", sess.SessionID, "error", err)
	}
}

// persistEvaluation writes the Evaluation record with up to two bounded
// retries; on repeated failure it returns "" and the caller drops the
// evaluation per §4.7's failure semantics.
func (m *Manager) persistEvaluation(ctx context.Context, sess core.Session, engine string, result core.MSWIMResult, hint core.GenerativeHint, events []core.TrackEvent, now time.Time) string {
	ev := core.Evaluation{
		ID:                newID(),
		SessionID:         sess.SessionID,
		SiteURL:           sess.SiteURL,
		EvalEngine:        engine,
		Result:            result,
		SessionSnapshot:   sess,
		EventsSnapshot:    events,
		Narrative:         hint.Narrative,
		DetectedFrictions: hint.Frictions,
		CreatedAt:         now,
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		if _, err := m.deps.Evaluations.Create(ctx, ev); err != nil {
			lastErr = err
			continue
		}
		return ev.ID
	}

	slog.Error("session: dropping evaluation after exhausting retries", "session_id", sess.SessionID, "error", lastErr)
	m.incrementFailedEvaluations()
	return ""
}

func (m *Manager) broadcastEvaluation(sess core.Session, evalID string, result core.MSWIMResult) {
	if m.deps.Broadcast == nil {
		return
	}
	m.deps.Broadcast.BroadcastToChannel(broadcast.ChannelDashboard, broadcast.Frame{
		Type:      "evaluation",
		SessionID: sess.SessionID,
		Data: map[string]interface{}{
			"evaluation_id": evalID,
			"session_id":    sess.SessionID,
			"result":        result,
		},
	})
}

func (m *Manager) fireIntervention(ctx context.Context, sess core.Session, evalID string, result core.MSWIMResult, sessCtx mswim.SessionCtx, counters *core.SessionRunningCounters, now time.Time) {
	frictionID := primaryFrictionID(sessCtx.DetectedFrictionIDs)

	p := payload.Build(result.Tier, payload.Context{
		SessionID:    sess.SessionID,
		EvaluationID: evalID,
		FrictionID:   frictionID,
		PageType:     sessCtx.PageType,
		CartValue:    sessCtx.CartValue,
		SiteURL:      sess.SiteURL,
	})

	iv := core.Intervention{
		ID:           newID(),
		SessionID:    sess.SessionID,
		EvaluationID: evalID,
		Type:         p.Type,
		FrictionID:   frictionID,
		ActionCode:   p.ActionCode,
		Message:      p.Message,
		MSWIMScore:   result.CompositeScore,
		TierAtFire:   result.Tier,
		Payload:      p,
		CreatedAt:    now,
		Status:       core.StatusSent,
		StatusUpdatedAt: now,
	}

	if err := m.deps.Interventions.Create(ctx, iv); err != nil {
		slog.Error("session: failed to persist intervention", "session_id", sess.SessionID, "error", err)
		return
	}

	updateCountersOnFire(counters, iv, now)

	if m.deps.Broadcast == nil {
		return
	}
	frame := broadcast.Frame{
		Type:      "intervention",
		SessionID: sess.SessionID,
		Data:      iv,
	}
	m.deps.Broadcast.BroadcastToChannelForSession(broadcast.ChannelWidget, sess.SessionID, frame)
	m.deps.Broadcast.BroadcastToChannel(broadcast.ChannelDashboard, frame)
}

func updateCountersOnFire(c *core.SessionRunningCounters, iv core.Intervention, now time.Time) {
	c.TotalInterventionsFired++
	if c.LastInterventionAt == nil {
		c.LastInterventionAt = make(map[string]time.Time)
	}
	c.LastInterventionAt[string(iv.Type)] = now

	switch iv.Type {
	case core.InterventionActive:
		c.TotalActive++
	case core.InterventionNudge:
		c.TotalNudges++
	}
	if iv.Type != core.InterventionPassive {
		c.TotalNonPassive++
	}

	if iv.FrictionID != "" {
		if c.FrictionIDsAlreadyIntervened == nil {
			c.FrictionIDsAlreadyIntervened = make(map[string]bool)
		}
		c.FrictionIDsAlreadyIntervened[iv.FrictionID] = true
	}
}

func primaryFrictionID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
