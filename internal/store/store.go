// Package store persists tree nodes as one JSON file per node, sharded
// into fixed level-named buckets, with a bounded write-through LRU in
// front of the disk layer.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgallion1/docqa/internal/lru"
	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/tree"
)

// Source reports where a loaded node came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceDisk  Source = "disk"
	SourceMiss  Source = "miss"
)

// NoLevelHint tells Load to scan every bucket in level order.
const NoLevelHint = -1

// DefaultCacheSize bounds the in-memory node cache.
const DefaultCacheSize = 5000

// levelDirs maps tree levels to their on-disk buckets. Deeper levels all
// share the last bucket to keep the fan-out fixed.
var levelDirs = []string{"root", "volumes", "chapters", "sections", "chunks", "chunks_l5", "chunks_l6"}

const rootPointerFile = "root.json"

// NodeStore is the tiered node storage: durable per-node files plus a
// bounded LRU of recently touched nodes. Disk writes are last-writer-wins
// with no file locking; a concurrent rebuild and read may observe either
// generation.
type NodeStore struct {
	indexRoot string
	collector *metrics.Collector

	mu    sync.Mutex
	cache *lru.Cache[string, *tree.Node]
}

// NewNodeStore creates the bucket directories under indexRoot and returns
// a store whose cache holds at most cacheSize nodes.
func NewNodeStore(indexRoot string, cacheSize int, collector *metrics.Collector) (*NodeStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	for _, dir := range levelDirs {
		if err := os.MkdirAll(filepath.Join(indexRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", dir, err)
		}
	}
	return &NodeStore{
		indexRoot: indexRoot,
		collector: collector,
		cache:     lru.New[string, *tree.Node](cacheSize),
	}, nil
}

func bucketFor(level int) string {
	if level < 0 {
		level = 0
	}
	if level >= len(levelDirs) {
		level = len(levelDirs) - 1
	}
	return levelDirs[level]
}

func (s *NodeStore) pathFor(nodeID string, level int) string {
	return filepath.Join(s.indexRoot, bucketFor(level), nodeID+".json")
}

// Save writes the node file (write-through) and promotes the node in the
// cache, evicting least-recently-used entries past capacity.
func (s *NodeStore) Save(node *tree.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}
	if err := os.WriteFile(s.pathFor(node.ID, node.Level), data, 0o644); err != nil {
		return fmt.Errorf("write node %s: %w", node.ID, err)
	}

	s.mu.Lock()
	s.cache.Put(node.ID, node)
	s.mu.Unlock()
	return nil
}

// Load returns a node by id. A cache hit reports SourceCache; a cache miss
// scans the hinted bucket, or all buckets in level order when levelHint is
// NoLevelHint, and on success promotes the node and reports SourceDisk. A
// truly absent id reports SourceMiss with a nil node.
func (s *NodeStore) Load(nodeID string, levelHint int) (*tree.Node, Source, error) {
	s.mu.Lock()
	if node, ok := s.cache.Get(nodeID); ok {
		s.mu.Unlock()
		s.collector.RecordCacheHit()
		return node, SourceCache, nil
	}
	s.mu.Unlock()
	s.collector.RecordCacheMiss()

	levels := make([]int, 0, len(levelDirs))
	if levelHint != NoLevelHint {
		levels = append(levels, levelHint)
	} else {
		for level := range levelDirs {
			levels = append(levels, level)
		}
	}

	for _, level := range levels {
		path := s.pathFor(nodeID, level)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, SourceDisk, fmt.Errorf("read node %s: %w", nodeID, err)
		}
		var node tree.Node
		if err := json.Unmarshal(data, &node); err != nil {
			return nil, SourceDisk, fmt.Errorf("decode node %s: %w", nodeID, err)
		}
		s.collector.RecordDiskLoad()

		s.mu.Lock()
		s.cache.Put(nodeID, &node)
		s.mu.Unlock()
		return &node, SourceDisk, nil
	}

	return nil, SourceMiss, nil
}

// CacheLen returns the current number of cached nodes.
func (s *NodeStore) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// SaveRoot records the tree's root pointer. The pointer bypasses the LRU:
// it is the traversal entry point and must reflect the latest build.
func (s *NodeStore) SaveRoot(rootID string, meta tree.RootMeta) error {
	pointer := tree.RootPointer{RootID: rootID, Metadata: meta}
	data, err := json.MarshalIndent(pointer, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal root pointer: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.indexRoot, rootPointerFile), data, 0o644); err != nil {
		return fmt.Errorf("write root pointer: %w", err)
	}
	return nil
}

// LoadRoot reads the root pointer fresh from disk. A missing or unreadable
// pointer returns nil, meaning no tree exists yet.
func (s *NodeStore) LoadRoot() *tree.RootPointer {
	data, err := os.ReadFile(filepath.Join(s.indexRoot, rootPointerFile))
	if err != nil {
		return nil
	}
	var pointer tree.RootPointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		return nil
	}
	return &pointer
}
