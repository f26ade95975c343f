// Package store holds the decision-record sinks and the read side used by
// the stats and logs views.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zen-systems/tierroute/pkg/router"
)

// DefaultRecentLimit is used when Recent is called with limit <= 0.
const DefaultRecentLimit = 100

// Reader queries stored decision records.
type Reader interface {
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]router.DecisionRecord, error)
	// Stats aggregates every stored record.
	Stats(ctx context.Context) (Stats, error)
}

// Store is a sink that can also be queried.
type Store interface {
	router.Sink
	Reader
	Close() error
}

// Cleaner is implemented by stores that support retention cleanup.
type Cleaner interface {
	// Cleanup deletes records created before cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
}

// BackendStats is the per-backend share of Stats.
type BackendStats struct {
	Count   int     `json:"count"`
	CostUSD float64 `json:"cost"`
}

// Stats summarizes stored decisions.
type Stats struct {
	TotalRequests int                     `json:"total_requests"`
	TotalCostUSD  float64                 `json:"total_cost_usd"`
	Breakdown     map[string]BackendStats `json:"breakdown"`
}

// Summarize computes Stats over records.
func Summarize(records []router.DecisionRecord) Stats {
	s := Stats{Breakdown: make(map[string]BackendStats)}
	for _, rec := range records {
		s.add(rec.Backend, 1, rec.CostUSD)
	}
	return s
}

func (s *Stats) add(backend string, count int, cost float64) {
	if s.Breakdown == nil {
		s.Breakdown = make(map[string]BackendStats)
	}
	b := s.Breakdown[backend]
	b.Count += count
	b.CostUSD += cost
	s.Breakdown[backend] = b
	s.TotalRequests += count
	s.TotalCostUSD += cost
}

// Backends returns the backend names in Breakdown, sorted.
func (s Stats) Backends() []string {
	names := make([]string, 0, len(s.Breakdown))
	for name := range s.Breakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Memory keeps the most recent records in a fixed-size ring.
type Memory struct {
	mu    sync.RWMutex
	buf   []router.DecisionRecord
	next  int
	full  bool
	stats Stats
}

// NewMemory creates a ring holding up to capacity records. Stats cover
// every appended record, including those evicted from the ring.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{
		buf:   make([]router.DecisionRecord, capacity),
		stats: Stats{Breakdown: make(map[string]BackendStats)},
	}
}

func (m *Memory) Append(_ context.Context, rec router.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = rec
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	m.stats.add(rec.Backend, 1, rec.CostUSD)
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]router.DecisionRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.buf)
	}
	if limit > size {
		limit = size
	}
	out := make([]router.DecisionRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Stats{
		TotalRequests: m.stats.TotalRequests,
		TotalCostUSD:  m.stats.TotalCostUSD,
		Breakdown:     make(map[string]BackendStats, len(m.stats.Breakdown)),
	}
	for k, v := range m.stats.Breakdown {
		out.Breakdown[k] = v
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
