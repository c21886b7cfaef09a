package session

import (
	"sync"
	"time"

	"ava/internal/core"
)

// sessionState is the in-memory state the manager owns per active session:
// a bounded event buffer, the running counters of §3, and a flush timer.
// All mutation happens under mu, which also serializes flushes for this
// session (§4.7 "ordering guarantees").
type sessionState struct {
	mu sync.Mutex

	session  core.Session
	buffer   *ringBuffer
	counters core.SessionRunningCounters

	flushTimer *time.Timer
	flushing   bool

	lastGenerativeEvalAt time.Time
}

func newSessionState(s core.Session, maxContextEvents int) *sessionState {
	return &sessionState{
		session:  s,
		buffer:   newRingBuffer(maxContextEvents),
		counters: core.NewSessionRunningCounters(),
	}
}
