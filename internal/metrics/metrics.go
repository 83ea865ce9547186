package metrics

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp time.Time
	latencyMs int64
}

// LatencyStats is a point-in-time aggregate of recent retrieval latencies.
type LatencyStats struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Snapshot is a read-only view of all collected counters.
type Snapshot struct {
	CacheHits            int64        `json:"cache_hits"`
	CacheMisses          int64        `json:"cache_misses"`
	CacheHitRate         float64      `json:"cache_hit_rate"`
	NodesLoadedFromDisk  int64        `json:"nodes_loaded_from_disk"`
	NodesEvaluated       int64        `json:"nodes_evaluated"`
	MaxTreeDepthSeen     int          `json:"max_tree_depth_seen"`
	RetrievalCount       int64        `json:"retrieval_count"`
	LastRetrievalMs      int64        `json:"last_retrieval_latency_ms"`
	AvgRetrievalMs       float64      `json:"avg_retrieval_latency_ms"`
	RetrievalLatency     LatencyStats `json:"retrieval_latency"`
	LastUpdatedEpochMs   int64        `json:"last_updated_epoch_ms"`
}

// Collector tracks cache, disk, and traversal counters plus a rolling
// window of retrieval latencies.
type Collector struct {
	mu sync.Mutex

	cacheHits     int64
	cacheMisses   int64
	diskLoads     int64
	evaluated     int64
	maxDepth      int
	retrievals    int64
	lastLatencyMs int64
	avgLatencyMs  float64
	lastUpdated   time.Time

	samples []sample
	maxAge  time.Duration
}

// NewCollector creates a Collector whose latency window spans maxAge
// (defaults to one hour).
func NewCollector(maxAge time.Duration) *Collector {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Collector{
		samples:     make([]sample, 0, 256),
		maxAge:      maxAge,
		lastUpdated: time.Now(),
	}
}

func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits++
	c.lastUpdated = time.Now()
}

func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheMisses++
	c.lastUpdated = time.Now()
}

func (c *Collector) RecordDiskLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diskLoads++
	c.lastUpdated = time.Now()
}

func (c *Collector) RecordNodeEvaluated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluated++
	c.lastUpdated = time.Now()
}

func (c *Collector) RecordTreeDepth(depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if depth > c.maxDepth {
		c.maxDepth = depth
	}
	c.lastUpdated = time.Now()
}

// RecordRetrievalLatency folds one traversal latency into the running
// average and the rolling window.
func (c *Collector) RecordRetrievalLatency(latencyMs int64) {
	if latencyMs < 0 {
		latencyMs = 0
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.retrievals++
	c.lastLatencyMs = latencyMs
	c.avgLatencyMs += (float64(latencyMs) - c.avgLatencyMs) / float64(c.retrievals)

	c.pruneLocked(now)
	c.samples = append(c.samples, sample{timestamp: now, latencyMs: latencyMs})
	c.lastUpdated = now
}

// CacheCounters returns the current hit and disk-load counters. Traversals
// use before/after deltas to attribute loads to a single walk.
func (c *Collector) CacheCounters() (hits, diskLoads int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheHits, c.diskLoads
}

// Stats returns a full snapshot of all counters.
func (c *Collector) Stats() Snapshot {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(now)

	total := c.cacheHits + c.cacheMisses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.cacheHits) / float64(total)
	}

	return Snapshot{
		CacheHits:           c.cacheHits,
		CacheMisses:         c.cacheMisses,
		CacheHitRate:        hitRate,
		NodesLoadedFromDisk: c.diskLoads,
		NodesEvaluated:      c.evaluated,
		MaxTreeDepthSeen:    c.maxDepth,
		RetrievalCount:      c.retrievals,
		LastRetrievalMs:     c.lastLatencyMs,
		AvgRetrievalMs:      c.avgLatencyMs,
		RetrievalLatency:    c.latencyStatsLocked(),
		LastUpdatedEpochMs:  c.lastUpdated.UnixMilli(),
	}
}

func (c *Collector) latencyStatsLocked() LatencyStats {
	if len(c.samples) == 0 {
		return LatencyStats{}
	}
	values := make([]int64, 0, len(c.samples))
	for _, s := range c.samples {
		values = append(values, s.latencyMs)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return LatencyStats{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (c *Collector) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.maxAge)
	writeIdx := 0
	for _, s := range c.samples {
		if !s.timestamp.Before(cutoff) {
			c.samples[writeIdx] = s
			writeIdx++
		}
	}
	c.samples = c.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
