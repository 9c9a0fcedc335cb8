package stats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type fakePersister struct {
	mu        sync.Mutex
	snapshots []map[string]uint64
	err       error
}

func (f *fakePersister) StoreServiceStats(ctx context.Context, snapshot map[string]uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func TestSnapshot_CountsIncrements(t *testing.T) {
	s := New()

	s.IncrementTotalRequests()
	s.IncrementTotalRequests()
	s.IncrementCacheHits()
	s.IncrementComputed()
	s.IncrementDegraded()
	s.IncrementFlightNotFound()
	s.IncrementUpstreamErrors()

	snapshot := s.Snapshot()

	want := map[string]uint64{
		"total_requests":   2,
		"cache_hits":       1,
		"computed":         1,
		"degraded":         1,
		"flight_not_found": 1,
		"upstream_errors":  1,
	}
	for key, expected := range want {
		if snapshot[key] != expected {
			t.Errorf("%s = %d, want %d", key, snapshot[key], expected)
		}
	}
}

func TestIncrement_ConcurrentSafety(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncrementTotalRequests()
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot()["total_requests"]; got != 5000 {
		t.Errorf("total_requests = %d, want 5000", got)
	}
}

func TestPersist(t *testing.T) {
	s := New()
	persister := &fakePersister{}
	s.SetPersister(persister)

	s.IncrementComputed()

	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	if len(persister.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(persister.snapshots))
	}
	if persister.snapshots[0]["computed"] != 1 {
		t.Errorf("persisted computed = %d, want 1", persister.snapshots[0]["computed"])
	}
}

func TestPersist_NoPersister(t *testing.T) {
	s := New()
	if err := s.Persist(context.Background()); err == nil {
		t.Error("Persist() should fail without a persister")
	}
}

func TestPersist_StoreError(t *testing.T) {
	s := New()
	s.SetPersister(&fakePersister{err: errors.New("connection refused")})

	if err := s.Persist(context.Background()); err == nil {
		t.Error("Persist() should surface store errors")
	}
}

func TestString_IncludesCounters(t *testing.T) {
	s := New()
	s.IncrementTotalRequests()
	s.IncrementCacheHits()

	out := s.String()
	if !strings.Contains(out, "Requests: 1") {
		t.Errorf("String() missing request count: %s", out)
	}
	if !strings.Contains(out, "Cache Hits: 1") {
		t.Errorf("String() missing cache hits: %s", out)
	}
}
