package pool

import "time"

// Stats is the pool statistics surface from §4.6.
type Stats struct {
	TotalConnections     int
	ActiveConnections    int
	IdleConnections      int
	WaitingClients       int
	TotalCreated         int64
	TotalDestroyed       int64
	TotalAcquired        int64
	TotalReleased        int64
	TotalErrors          int64
	AverageAcquireTimeMs float64
	CacheHitRate         float64
}

// Stats returns a snapshot of the pool's current statistics, satisfying
// the conservation invariants in §8: totalCreated - totalDestroyed =
// |connections|, active + idle = |connections|, waitingClients = |waiters|.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := 0
	for _, c := range p.connections {
		if c.InUse {
			active++
		}
	}

	var avgMs float64
	if len(p.acquireSamples) > 0 {
		var total time.Duration
		for _, d := range p.acquireSamples {
			total += d
		}
		avgMs = float64(total.Milliseconds()) / float64(len(p.acquireSamples))
	}

	var hitRate float64
	if total := p.cacheHits + p.cacheMisses; total > 0 {
		hitRate = float64(p.cacheHits) / float64(total)
	}

	return Stats{
		TotalConnections:     len(p.connections),
		ActiveConnections:    active,
		IdleConnections:      len(p.connections) - active,
		WaitingClients:       len(p.waiters),
		TotalCreated:         p.totalCreated,
		TotalDestroyed:       p.totalDestroyed,
		TotalAcquired:        p.totalAcquired,
		TotalReleased:        p.totalReleased,
		TotalErrors:          p.totalErrors,
		AverageAcquireTimeMs: avgMs,
		CacheHitRate:         hitRate,
	}
}
