package session

import (
	"context"
	"sync"
	"time"

	"ava/internal/core"
	"ava/internal/generative"
	"ava/internal/repo"
)

// fakeSessionRepo records UpdateCounters calls; other methods are unused by
// the evaluator and return zero values.
type fakeSessionRepo struct {
	mu             sync.Mutex
	updatedCounters map[string]core.SessionRunningCounters
	failUpdate     bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{updatedCounters: map[string]core.SessionRunningCounters{}}
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, s core.Session) error { return nil }
func (f *fakeSessionRepo) LookupBy(ctx context.Context, visitorKey, sessionKey string) (core.Session, bool, error) {
	return core.Session{}, false, nil
}
func (f *fakeSessionRepo) ListSince(ctx context.Context, siteURL string, since time.Time) ([]core.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) MarkEnded(ctx context.Context, sessionID string) error { return nil }
func (f *fakeSessionRepo) UpdateCounters(ctx context.Context, sessionID string, counters core.SessionRunningCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return assertErr
	}
	f.updatedCounters[sessionID] = counters
	return nil
}

func (f *fakeSessionRepo) countersFor(sessionID string) (core.SessionRunningCounters, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.updatedCounters[sessionID]
	return c, ok
}

// fakeEventRepo records every appended event.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []core.TrackEvent
}

func newFakeEventRepo() *fakeEventRepo { return &fakeEventRepo{} }

func (f *fakeEventRepo) Append(ctx context.Context, e core.TrackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}
func (f *fakeEventRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.TrackEvent, error) {
	return nil, nil
}
func (f *fakeEventRepo) FunnelStepCounts(ctx context.Context, siteURL string, since time.Time) ([]repo.FunnelStepCount, error) {
	return nil, nil
}
func (f *fakeEventRepo) AvgTimeOnPageMs(ctx context.Context, siteURL string, pageType core.PageType) (float64, error) {
	return 0, nil
}
func (f *fakeEventRepo) AvgScrollDepthPct(ctx context.Context, siteURL string, pageType core.PageType) (float64, error) {
	return 0, nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeEvaluationRepo records created Evaluations, optionally failing every
// attempt to exercise the persistence-retry path.
type fakeEvaluationRepo struct {
	mu        sync.Mutex
	created   []core.Evaluation
	failCount int
}

func newFakeEvaluationRepo() *fakeEvaluationRepo { return &fakeEvaluationRepo{} }

func (f *fakeEvaluationRepo) Create(ctx context.Context, e core.Evaluation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCount > 0 {
		f.failCount--
		return "", assertErr
	}
	f.created = append(f.created, e)
	return e.ID, nil
}
func (f *fakeEvaluationRepo) List(ctx context.Context, sessionID string, limit int) ([]core.Evaluation, error) {
	return nil, nil
}
func (f *fakeEvaluationRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Evaluation, error) {
	return nil, nil
}

func (f *fakeEvaluationRepo) snapshot() []core.Evaluation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Evaluation, len(f.created))
	copy(out, f.created)
	return out
}

// fakeInterventionRepo records created Interventions.
type fakeInterventionRepo struct {
	mu      sync.Mutex
	created []core.Intervention
}

func newFakeInterventionRepo() *fakeInterventionRepo { return &fakeInterventionRepo{} }

func (f *fakeInterventionRepo) Create(ctx context.Context, iv core.Intervention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, iv)
	return nil
}
func (f *fakeInterventionRepo) List(ctx context.Context, filter repo.InterventionFilter) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) Get(ctx context.Context, id string) (core.Intervention, bool, error) {
	return core.Intervention{}, false, nil
}
func (f *fakeInterventionRepo) UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error {
	return nil
}

func (f *fakeInterventionRepo) snapshot() []core.Intervention {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Intervention, len(f.created))
	copy(out, f.created)
	return out
}

// fakeShadowComparisonRepo records created ShadowComparisons.
type fakeShadowComparisonRepo struct {
	mu      sync.Mutex
	created []core.ShadowComparison
}

func newFakeShadowComparisonRepo() *fakeShadowComparisonRepo { return &fakeShadowComparisonRepo{} }

func (f *fakeShadowComparisonRepo) Create(ctx context.Context, c core.ShadowComparison) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	return nil
}
func (f *fakeShadowComparisonRepo) List(ctx context.Context, filter repo.ShadowComparisonFilter) ([]core.ShadowComparison, error) {
	return nil, nil
}
func (f *fakeShadowComparisonRepo) Stats(ctx context.Context, siteURL string, since time.Time) (repo.ShadowComparisonStats, error) {
	return repo.ShadowComparisonStats{}, nil
}
func (f *fakeShadowComparisonRepo) TopDivergences(ctx context.Context, siteURL string, limit int) ([]core.ShadowComparison, error) {
	return nil, nil
}

func (f *fakeShadowComparisonRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// fakeScoringConfigRepo always serves a fixed active config.
type fakeScoringConfigRepo struct {
	active core.ScoringConfig
}

func (f *fakeScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	return nil, nil
}
func (f *fakeScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	return f.active, true, nil
}
func (f *fakeScoringConfigRepo) Create(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Update(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Activate(ctx context.Context, id string) error            { return nil }
func (f *fakeScoringConfigRepo) Delete(ctx context.Context, id string) error              { return nil }
func (f *fakeScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	return f.active, true, nil
}

// assertErr is a sentinel error used by the fakes above.
var assertErr = &fakeErr{"fake repo failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

// spyGenerativeClient wraps a generative.Client, counting calls and
// optionally forcing a failure, to let tests assert whether the
// generative path was actually exercised.
type spyGenerativeClient struct {
	inner     generative.Client
	mu        sync.Mutex
	callCount int
	failNext  bool
}

func (s *spyGenerativeClient) Complete(ctx context.Context, p generative.Prompt) (core.GenerativeHint, error) {
	s.mu.Lock()
	s.callCount++
	fail := s.failNext
	s.mu.Unlock()
	if fail {
		return core.GenerativeHint{}, assertErr
	}
	return s.inner.Complete(ctx, p)
}

func (s *spyGenerativeClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
