package prediction

import (
	"sync"
	"time"
)

// Stats tracks pipeline counters for the health and dashboard views.
type Stats struct {
	mu           sync.RWMutex
	predictions  int64
	errors       int64
	cacheHits    int64
	cacheMisses  int64
	totalLatency time.Duration
	startTime    time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Predictions    int64   `json:"predictions"`
	Errors         int64   `json:"errors"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	ErrorRate      float64 `json:"error_rate"`
	AverageLatency float64 `json:"average_latency_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

func newStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) recordHit(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions++
	s.cacheHits++
	s.totalLatency += latency
}

func (s *Stats) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheMisses++
}

func (s *Stats) recordPrediction(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions++
	s.totalLatency += latency
}

func (s *Stats) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// Snapshot returns the current counters and derived rates.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		Predictions:   s.predictions,
		Errors:        s.errors,
		CacheHits:     s.cacheHits,
		CacheMisses:   s.cacheMisses,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if lookups := s.cacheHits + s.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(s.cacheHits) / float64(lookups)
	}
	if total := s.predictions + s.errors; total > 0 {
		snap.ErrorRate = float64(s.errors) / float64(total)
	}
	if s.predictions > 0 {
		snap.AverageLatency = s.totalLatency.Seconds() * 1000 / float64(s.predictions)
	}
	return snap
}
