package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Persister stores a statistics snapshot. The historical store implements
// this against the service_stats table.
type Persister interface {
	StoreServiceStats(ctx context.Context, snapshot map[string]uint64) error
}

// Stats tracks prediction service counters. Counter updates are atomic so
// request handlers never contend on a lock.
type Stats struct {
	TotalRequests  uint64
	CacheHits      uint64
	Computed       uint64
	Degraded       uint64
	FlightNotFound uint64
	UpstreamErrors uint64

	StartTime time.Time

	persister Persister
	mu        sync.RWMutex
}

// New creates a Stats instance.
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
	}
}

// SetPersister sets the snapshot store used by StartPersistence.
func (s *Stats) SetPersister(p Persister) {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// IncrementTotalRequests counts every prediction request received.
func (s *Stats) IncrementTotalRequests() {
	atomic.AddUint64(&s.TotalRequests, 1)
}

// IncrementCacheHits counts requests served from cache.
func (s *Stats) IncrementCacheHits() {
	atomic.AddUint64(&s.CacheHits, 1)
}

// IncrementComputed counts freshly computed predictions.
func (s *Stats) IncrementComputed() {
	atomic.AddUint64(&s.Computed, 1)
}

// IncrementDegraded counts predictions computed with fallback inputs.
func (s *Stats) IncrementDegraded() {
	atomic.AddUint64(&s.Degraded, 1)
}

// IncrementFlightNotFound counts lookups for unknown flights.
func (s *Stats) IncrementFlightNotFound() {
	atomic.AddUint64(&s.FlightNotFound, 1)
}

// IncrementUpstreamErrors counts fatal upstream failures.
func (s *Stats) IncrementUpstreamErrors() {
	atomic.AddUint64(&s.UpstreamErrors, 1)
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"total_requests":   atomic.LoadUint64(&s.TotalRequests),
		"cache_hits":       atomic.LoadUint64(&s.CacheHits),
		"computed":         atomic.LoadUint64(&s.Computed),
		"degraded":         atomic.LoadUint64(&s.Degraded),
		"flight_not_found": atomic.LoadUint64(&s.FlightNotFound),
		"upstream_errors":  atomic.LoadUint64(&s.UpstreamErrors),
	}
}

// Persist stores the current counters through the configured persister.
func (s *Stats) Persist(ctx context.Context) error {
	s.mu.RLock()
	p := s.persister
	s.mu.RUnlock()

	if p == nil {
		return fmt.Errorf("stats persister not set")
	}
	return p.StoreServiceStats(ctx, s.Snapshot())
}

// String renders the counters for periodic log output.
func (s *Stats) String() string {
	snapshot := s.Snapshot()
	return fmt.Sprintf(
		"Requests: %d | Cache Hits: %d | Computed: %d | Degraded: %d | Not Found: %d | Upstream Errors: %d | Uptime: %s",
		snapshot["total_requests"],
		snapshot["cache_hits"],
		snapshot["computed"],
		snapshot["degraded"],
		snapshot["flight_not_found"],
		snapshot["upstream_errors"],
		time.Since(s.StartTime).Round(time.Second),
	)
}

// StartPersistence persists counters on interval until ctx is canceled, with
// a final snapshot on shutdown.
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Persist(context.Background()); err != nil {
				log.Printf("Warning: failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(ctx); err != nil {
				log.Printf("Warning: failed to persist statistics: %v", err)
			}
		}
	}
}
