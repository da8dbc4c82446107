package contentservice

import "sync/atomic"

// Stats counts cache outcomes since creation or the last Reset.
type Stats struct {
	requests  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
	fallbacks atomic.Int64
}

type StatsSnapshot struct {
	TotalRequests int64   `json:"totalRequests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Errors        int64   `json:"errors"`
	Fallbacks     int64   `json:"fallbacks"`
	HitRate       float64 `json:"hitRate"`
	FallbackRate  float64 `json:"fallbackRate"`
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalRequests: s.requests.Load(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Errors:        s.errors.Load(),
		Fallbacks:     s.fallbacks.Load(),
	}
	if snap.TotalRequests > 0 {
		snap.HitRate = float64(snap.Hits) / float64(snap.TotalRequests)
		snap.FallbackRate = float64(snap.Fallbacks) / float64(snap.TotalRequests)
	}

	return snap
}

func (s *Stats) Reset() {
	s.requests.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.errors.Store(0)
	s.fallbacks.Store(0)
}
