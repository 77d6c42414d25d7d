package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riiali/green-microbench/pkg/report"
)

// MemoryStore keeps run reports in process memory. It is safe for concurrent
// use by multiple goroutines.
//
// With a TTL configured, a background goroutine removes reports that have
// been stored longer than the TTL. For persistence across restarts or
// multi-instance setups use RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	reports       map[string]storedReport
	latestID      string
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

type storedReport struct {
	report   *report.Report
	storedAt time.Time
}

// NewMemoryStore creates an in-memory report store with no TTL. Reports stay
// until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]storedReport),
	}
}

// NewMemoryStoreWithTTL creates an in-memory report store with automatic
// TTL-based cleanup. The cleanup goroutine must be stopped with Stop() when
// the store is no longer needed.
//
// cleanupInterval determines how often the cleanup runs (typically 1 minute).
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		reports:       make(map[string]storedReport),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the background cleanup goroutine and blocks until it has
// exited. Calling Stop multiple times or on a store without TTL is safe.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for runID, stored := range s.reports {
		if now.Sub(stored.storedAt) > s.ttl {
			delete(s.reports, runID)
			if s.latestID == runID {
				s.latestID = ""
			}
		}
	}
}

// Put stores a report under its run ID, replacing any existing report, and
// marks the run as latest.
func (s *MemoryStore) Put(ctx context.Context, r *report.Report) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("report run ID cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[r.RunID] = storedReport{report: r, storedAt: time.Now()}
	s.latestID = r.RunID
	return nil
}

// Get retrieves the report for a run ID. The second return value is false
// when no report exists for the run.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*report.Report, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, found := s.reports[runID]
	return stored.report, found, nil
}

// Latest retrieves the most recently stored report.
func (s *MemoryStore) Latest(ctx context.Context) (*report.Report, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestID == "" {
		return nil, false, nil
	}
	stored, found := s.reports[s.latestID]
	return stored.report, found, nil
}

// Len returns the number of stored reports. Primarily useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Delete removes a run's report. Returns true if one existed.
func (s *MemoryStore) Delete(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.reports[runID]
	delete(s.reports, runID)
	if s.latestID == runID {
		s.latestID = ""
	}
	return existed
}
