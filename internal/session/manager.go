// Package session implements the session evaluator (§4.7), the heart of
// AVA: it buffers incoming TrackEvents per session, batches them into
// flushes, and on each flush runs the MSWIM pipeline, persists the result,
// and broadcasts interventions — following the teacher's background-worker
// idiom (sync.Mutex-guarded per-entity state plus a self-rescheduling
// timer, as in the reputation decay scheduler) generalized to per-session
// granularity instead of a single global sweep.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ava/internal/broadcast"
	"ava/internal/config"
	"ava/internal/core"
	"ava/internal/generative"
	"ava/internal/mswim"
	"ava/internal/repo"
	"ava/internal/shadow"
)

// VariantResolver resolves an optional A/B override for a session, per
// §4.11. Implementations live in internal/variant; Manager works fine with
// a nil resolver (every session uses the site default).
type VariantResolver interface {
	ResolveOverride(ctx context.Context, siteURL, sessionID string) (configID, evalEngine string, ok bool)
}

// Deps bundles every collaborator the session evaluator calls out to.
type Deps struct {
	Sessions          repo.SessionRepo
	Events            repo.EventRepo
	Evaluations       repo.EvaluationRepo
	Interventions     repo.InterventionRepo
	ShadowComparisons repo.ShadowComparisonRepo

	ConfigLoader *config.ScoringConfigLoader
	Generative   generative.Client
	Engine       *mswim.Engine
	Shadow       *shadow.Evaluator
	Broadcast    *broadcast.Hub
	Variants     VariantResolver

	BatchIntervalMs       int
	BatchMaxEvents        int
	MaxContextEvents      int
	DefaultEvalEngine     string
	AutoEngineCooldownSec int
	ShadowEnabled         bool

	Now func() time.Time
}

// Manager owns every active session's in-memory state and drives the
// ingest/flush cycle.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*sessionState

	failedEvaluations int64
}

// NewManager constructs a session evaluator over deps. Zero-valued batching
// knobs fall back to the spec's documented defaults.
func NewManager(deps Deps) *Manager {
	if deps.BatchIntervalMs == 0 {
		deps.BatchIntervalMs = 5000
	}
	if deps.BatchMaxEvents == 0 {
		deps.BatchMaxEvents = 10
	}
	if deps.MaxContextEvents == 0 {
		deps.MaxContextEvents = 50
	}
	if deps.DefaultEvalEngine == "" {
		deps.DefaultEvalEngine = "auto"
	}
	if deps.AutoEngineCooldownSec == 0 {
		deps.AutoEngineCooldownSec = 120
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{deps: deps, sessions: make(map[string]*sessionState)}
}

// stateFor returns (creating if necessary) the in-memory state for
// sessionKey, backed by the given Session row.
func (m *Manager) stateFor(s core.Session) *sessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[s.SessionKey]
	if !ok {
		st = newSessionState(s, m.deps.MaxContextEvents)
		m.sessions[s.SessionKey] = st
	}
	return st
}

// Ingest appends event to sessionKey's buffer, updates its running
// counters and forced-gate flags, and schedules or accelerates a flush per
// §4.7's ingest operation.
func (m *Manager) Ingest(ctx context.Context, s core.Session, event core.TrackEvent) {
	if m.deps.Events != nil {
		if err := m.deps.Events.Append(ctx, event); err != nil {
			slog.Error("session: failed to persist track event", "session_id", s.SessionID, "error", err)
		}
	}

	st := m.stateFor(s)

	st.mu.Lock()
	wasEmpty := st.buffer.len() == 0
	st.buffer.push(event)
	applyEventToCounters(&st.counters, event)
	st.session.LastSeenAt = m.deps.Now()
	shouldFlushNow := st.buffer.len() >= m.deps.BatchMaxEvents
	if wasEmpty && !shouldFlushNow {
		m.scheduleFlush(st)
	}
	st.mu.Unlock()

	if shouldFlushNow {
		m.stopTimer(st)
		go m.flush(ctx, st)
	}
}

func (m *Manager) scheduleFlush(st *sessionState) {
	interval := time.Duration(m.deps.BatchIntervalMs) * time.Millisecond
	st.flushTimer = time.AfterFunc(interval, func() {
		m.flush(context.Background(), st)
	})
}

func (m *Manager) stopTimer(st *sessionState) {
	st.mu.Lock()
	if st.flushTimer != nil {
		st.flushTimer.Stop()
		st.flushTimer = nil
	}
	st.mu.Unlock()
}

// EndSession cancels sessionKey's flush timer and drops its in-memory
// state; callers should flush first if pending data must not be lost.
func (m *Manager) EndSession(sessionKey string) {
	m.mu.Lock()
	st, ok := m.sessions[sessionKey]
	delete(m.sessions, sessionKey)
	m.mu.Unlock()

	if ok {
		m.stopTimer(st)
	}
}

// FailedEvaluations reports the count of evaluations dropped after
// exhausting persistence retries, for telemetry.
func (m *Manager) FailedEvaluations() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failedEvaluations
}

func (m *Manager) incrementFailedEvaluations() {
	m.mu.Lock()
	m.failedEvaluations++
	m.mu.Unlock()
}
