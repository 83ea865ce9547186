package metrics

import (
	"testing"
	"time"
)

func TestCollectorCountersAndHitRate(t *testing.T) {
	c := NewCollector(time.Hour)
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordDiskLoad()
	c.RecordNodeEvaluated()
	c.RecordNodeEvaluated()

	snap := c.Stats()
	if snap.CacheHits != 3 {
		t.Fatalf("expected cache_hits=3, got %d", snap.CacheHits)
	}
	if snap.CacheMisses != 1 {
		t.Fatalf("expected cache_misses=1, got %d", snap.CacheMisses)
	}
	if snap.CacheHitRate != 0.75 {
		t.Fatalf("expected hit rate 0.75, got %f", snap.CacheHitRate)
	}
	if snap.NodesLoadedFromDisk != 1 {
		t.Fatalf("expected disk loads=1, got %d", snap.NodesLoadedFromDisk)
	}
	if snap.NodesEvaluated != 2 {
		t.Fatalf("expected evaluated=2, got %d", snap.NodesEvaluated)
	}
}

func TestCollectorTreeDepthKeepsMax(t *testing.T) {
	c := NewCollector(time.Hour)
	c.RecordTreeDepth(2)
	c.RecordTreeDepth(5)
	c.RecordTreeDepth(3)

	if snap := c.Stats(); snap.MaxTreeDepthSeen != 5 {
		t.Fatalf("expected max depth 5, got %d", snap.MaxTreeDepthSeen)
	}
}

func TestCollectorLatencyPercentiles(t *testing.T) {
	c := NewCollector(time.Hour)
	c.RecordRetrievalLatency(100)
	c.RecordRetrievalLatency(200)
	c.RecordRetrievalLatency(300)
	c.RecordRetrievalLatency(400)
	c.RecordRetrievalLatency(500)

	snap := c.Stats()
	if snap.RetrievalCount != 5 {
		t.Fatalf("expected retrieval count=5, got %d", snap.RetrievalCount)
	}
	if snap.LastRetrievalMs != 500 {
		t.Fatalf("expected last=500, got %d", snap.LastRetrievalMs)
	}
	if snap.AvgRetrievalMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgRetrievalMs)
	}
	lat := snap.RetrievalLatency
	if lat.MinMs != 100 || lat.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", lat.MinMs, lat.MaxMs)
	}
	if lat.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", lat.P50Ms)
	}
	if lat.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", lat.P95Ms)
	}
}

func TestCollectorLatencyWindowPrunes(t *testing.T) {
	c := NewCollector(10 * time.Millisecond)
	c.RecordRetrievalLatency(100)
	time.Sleep(25 * time.Millisecond)

	snap := c.Stats()
	if snap.RetrievalLatency.Count != 0 {
		t.Fatalf("expected empty window after prune, got %d", snap.RetrievalLatency.Count)
	}
	// The running average is lifetime, not windowed.
	if snap.RetrievalCount != 1 {
		t.Fatalf("expected lifetime count=1, got %d", snap.RetrievalCount)
	}
}

func TestCollectorClampsNegativeLatency(t *testing.T) {
	c := NewCollector(time.Hour)
	c.RecordRetrievalLatency(-10)
	snap := c.Stats()
	if snap.RetrievalLatency.MinMs != 0 || snap.RetrievalLatency.MaxMs != 0 {
		t.Fatalf("expected clamped latency=0, got min=%d max=%d",
			snap.RetrievalLatency.MinMs, snap.RetrievalLatency.MaxMs)
	}
}
