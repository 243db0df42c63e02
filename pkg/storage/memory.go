package storage

import (
	"context"
	"sync"
	"time"

	"github.com/HatiCode/fdbwatch/pkg/archive"
)

// MemoryStore implements an in-memory store for check reports.
// It is safe for concurrent use by multiple goroutines.
//
// If TTL is configured, a background goroutine removes reports whose
// CheckedAt is older than the TTL, so a stalled monitor stops serving stale
// results.
type MemoryStore struct {
	mu            sync.RWMutex
	reports       map[string]archive.Report
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates a new in-memory report store with no TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]archive.Report),
	}
}

// NewMemoryStoreWithTTL creates a new in-memory report store with automatic
// TTL-based cleanup every cleanupInterval (one minute if <= 0).
//
// Stop must be called when the store is no longer needed.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		reports:       make(map[string]archive.Report),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the cleanup goroutine and blocks until it has exited.
// Calling Stop multiple times or on a store without TTL does nothing.
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

// Close implements io.Closer by calling Stop.
func (s *MemoryStore) Close() error {
	s.Stop()
	return nil
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
	for model, report := range s.reports {
		if now.Sub(report.CheckedAt) > s.ttl {
			delete(s.reports, model)
		}
	}
}

// Put stores a report, replacing any existing report for the same model.
func (s *MemoryStore) Put(ctx context.Context, report archive.Report) error {
	if err := validateModel(report.Model); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[report.Model] = report
	return nil
}

// GetLatest returns the stored report for model and whether one exists.
// With a TTL, a report older than the TTL is not found even before the
// cleanup goroutine has removed it.
func (s *MemoryStore) GetLatest(ctx context.Context, model string) (archive.Report, bool, error) {
	select {
	case <-ctx.Done():
		return archive.Report{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	report, found := s.reports[model]
	if !found || (s.ttl > 0 && time.Since(report.CheckedAt) > s.ttl) {
		return archive.Report{}, false, nil
	}
	return report, true, nil
}
