package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickwarner/spaceforward/internal/observability"
)

// SpaceLimiter keeps one token bucket per network and space.
//
// Buckets are created lazily on first access. Buckets that have not been used
// for IdleTTL are dropped by Sweep so long-running servers do not accumulate
// one bucket per space ever seen.
type SpaceLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	metrics observability.MetricsRegistry
	now     func() time.Time
}

// Config holds the configuration for rate limiting.
type Config struct {
	Capacity   int  // burst allowance per space
	RefillRate int  // sustained events per second per space
	Enabled    bool // when false every event is allowed
	IdleTTL    time.Duration
}

// NewSpaceLimiter creates a limiter with the given configuration.
func NewSpaceLimiter(config Config, metrics observability.MetricsRegistry) *SpaceLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &SpaceLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

func bucketKey(network, space string) string {
	return network + ":" + space
}

// Allow reports whether another event for space on network may be forwarded.
func (l *SpaceLimiter) Allow(network, space string) bool {
	if !l.config.Enabled {
		return true
	}

	l.metrics.IncrementRateLimitRequests(network)

	key := bucketKey(network, space)
	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.now)
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		l.metrics.IncrementRateLimitHits(network)
	}
	return allowed
}

// Sweep drops buckets idle for longer than IdleTTL and returns how many were removed.
func (l *SpaceLimiter) Sweep() int {
	cutoff := l.now().Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, bucket := range l.buckets {
		if bucket.idleSince(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until stop is closed.
func (l *SpaceLimiter) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}

// GetStats returns a snapshot of per-space statistics keyed by "network:space".
func (l *SpaceLimiter) GetStats() map[string]RateLimitStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]RateLimitStats, len(l.buckets))
	for key, bucket := range l.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		stats[key] = RateLimitStats{Key: key, Hits: hits, Total: total, HitRate: hitRate}
	}
	return stats
}

// RateLimitStats contains statistics about rate limiting for a single space.
type RateLimitStats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

func (s RateLimitStats) String() string {
	return fmt.Sprintf("space %s: %d/%d hits (%.2f%%)", s.Key, s.Hits, s.Total, s.HitRate*100)
}
