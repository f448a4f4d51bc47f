// Package worker implements the per-handler poll loop and the WorkerPool
// that owns every Worker plus the cron scheduler and stale-claim janitor.
package worker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a Worker's externally observable state: idle -> claiming ->
// processing -> idle, any -> stopping.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusClaiming   Status = "claiming"
	StatusProcessing Status = "processing"
	StatusStopping   Status = "stopping"
)

// State is the mutable runtime snapshot of one Worker, read by operators and
// metrics collectors. All access goes through State's own mutex so callers
// never race with the poll loop.
type State struct {
	mu sync.RWMutex

	status         Status
	currentBatch   []uuid.UUID
	lastClaimAt    time.Time
	processedCount int64
	failedCount    int64
	lastError      string
}

// Snapshot is an immutable copy of State for safe external inspection.
type Snapshot struct {
	Status         Status
	CurrentBatch   []uuid.UUID
	LastClaimAt    time.Time
	ProcessedCount int64
	FailedCount    int64
	LastError      string
}

func newState() *State {
	return &State{status: StatusIdle}
}

func (s *State) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *State) setBatch(ids []uuid.UUID, claimedAt time.Time) {
	s.mu.Lock()
	s.currentBatch = ids
	s.lastClaimAt = claimedAt
	s.mu.Unlock()
}

func (s *State) clearBatch() {
	s.mu.Lock()
	s.currentBatch = nil
	s.mu.Unlock()
}

func (s *State) recordProcessed(n int) {
	s.mu.Lock()
	s.processedCount += int64(n)
	s.mu.Unlock()
}

func (s *State) recordFailure(err error) {
	s.mu.Lock()
	s.failedCount++
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch := make([]uuid.UUID, len(s.currentBatch))
	copy(batch, s.currentBatch)
	return Snapshot{
		Status:         s.status,
		CurrentBatch:   batch,
		LastClaimAt:    s.lastClaimAt,
		ProcessedCount: s.processedCount,
		FailedCount:    s.failedCount,
		LastError:      s.lastError,
	}
}
