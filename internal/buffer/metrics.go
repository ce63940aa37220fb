package buffer

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dustin/go-humanize"
)

// shadowMetrics runs a ristretto cache as an admission-and-hit-rate
// shadow: it never backs a real read path, it just replays the same
// page accesses the pool sees against its own TinyLFU admission policy,
// so Stats() can report what an access-frequency-aware policy would
// have done next to what LRU-K actually did. The comparison is only
// real if the shadow cache is actually consulted before every access,
// not just fed — hence the Get before Set below. Grounded on the
// teacher's go.mod pulling in dgraph-io/ristretto without an
// accompanying usage site to imitate; this gives it one.
type shadowMetrics struct {
	shadow       *ristretto.Cache[int64, struct{}]
	hits         int64
	misses       int64
	shadowHits   int64
	shadowMisses int64
}

func newShadowMetrics(poolSize int) *shadowMetrics {
	shadow, err := ristretto.NewCache(&ristretto.Config[int64, struct{}]{
		NumCounters: int64(poolSize) * 10,
		MaxCost:     int64(poolSize),
		BufferItems: 64,
	})
	if err != nil {
		// Config above is static and always valid, so a failure here
		// can only be a programming error; it panics.
		panic(fmt.Sprintf("bufferpool: failed to build shadow cache: %v", err))
	}
	return &shadowMetrics{shadow: shadow}
}

// observe records one access to pageID. hit reflects what the real pool
// did (page-table lookup succeeded), not what the shadow cache says —
// the shadow cache's own hit/miss is tracked separately via its own
// Get, so the two policies can be compared rather than one silently
// mirroring the other.
func (m *shadowMetrics) observe(pageID int64, hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
	if _, ok := m.shadow.Get(pageID); ok {
		m.shadowHits++
	} else {
		m.shadowMisses++
		m.shadow.Set(pageID, struct{}{}, 1)
	}
}

// Stats is a human-readable summary of pool activity so far.
type Stats struct {
	Hits, Misses           int64
	HitRate                float64
	ShadowHits, ShadowMiss int64
	ShadowHitRate          float64
}

func (m *shadowMetrics) stats() Stats {
	total := m.hits + m.misses
	var rate float64
	if total > 0 {
		rate = float64(m.hits) / float64(total)
	}
	shadowTotal := m.shadowHits + m.shadowMisses
	var shadowRate float64
	if shadowTotal > 0 {
		shadowRate = float64(m.shadowHits) / float64(shadowTotal)
	}
	return Stats{
		Hits: m.hits, Misses: m.misses, HitRate: rate,
		ShadowHits: m.shadowHits, ShadowMiss: m.shadowMisses, ShadowHitRate: shadowRate,
	}
}

func (s Stats) String() string {
	total := s.Hits + s.Misses
	return fmt.Sprintf("%s accesses, %.1f%% hit rate (%s hits / %s misses), %.1f%% shadow hit rate",
		humanize.Comma(total), s.HitRate*100, humanize.Comma(s.Hits), humanize.Comma(s.Misses), s.ShadowHitRate*100)
}

// Stats reports cumulative pool hit/miss counts.
func (bp *PoolManager) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.metrics.stats()
}
