package indexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/tree"
)

func newTestStore(t *testing.T) *store.NodeStore {
	t.Helper()
	st, err := store.NewNodeStore(t.TempDir(), store.DefaultCacheSize, metrics.NewCollector(0))
	if err != nil {
		t.Fatalf("NewNodeStore: %v", err)
	}
	return st
}

func wordSource(n int) BlockSource {
	return func(emit func(string) error) error {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "word%d ", i)
		}
		return emit(sb.String())
	}
}

func TestBuildFromStream_SmallDocCollapsesInOnePass(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 500, 10, 6)

	res, err := idx.BuildFromStream(wordSource(1200), "docs/book.txt")
	if err != nil {
		t.Fatalf("BuildFromStream: %v", err)
	}

	if res.ChunkCount != 3 {
		t.Errorf("expected 3 chunks from 1200 words, got %d", res.ChunkCount)
	}
	if res.NodeCount != 4 {
		t.Errorf("expected 3 leaves + 1 root, got %d nodes", res.NodeCount)
	}

	root, _, err := st.Load(res.RootID, store.NoLevelHint)
	if err != nil {
		t.Fatalf("load root: %v", err)
	}
	if root.Level != 0 || root.Title != "Root" {
		t.Errorf("root not promoted: level=%d title=%q", root.Level, root.Title)
	}
	if len(root.ChildrenIDs) != 3 {
		t.Fatalf("expected 3 root children, got %d", len(root.ChildrenIDs))
	}

	// Depth 1: every child is a leaf chunk pointing back at the root.
	for _, id := range root.ChildrenIDs {
		child, _, err := st.Load(id, store.NoLevelHint)
		if err != nil {
			t.Fatalf("load child %s: %v", id, err)
		}
		if child.Kind != tree.KindLeaf {
			t.Errorf("child %s: expected leaf, got %s", id, child.Kind)
		}
		if child.ParentID != root.ID {
			t.Errorf("child %s: parent_id %q, want %q", id, child.ParentID, root.ID)
		}
	}
}

func TestBuildFromStream_LeafPartitionCoversAllWords(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 100, 10, 6)

	const total = 950
	res, err := idx.BuildFromStream(wordSource(total), "docs/long.txt")
	if err != nil {
		t.Fatalf("BuildFromStream: %v", err)
	}
	if res.ChunkCount != 10 {
		t.Fatalf("expected 10 chunks (9 full + 1 partial), got %d", res.ChunkCount)
	}

	root, _, err := st.Load(res.RootID, store.NoLevelHint)
	if err != nil {
		t.Fatalf("load root: %v", err)
	}

	seen := make(map[string]bool)
	var leafWords int
	var walk func(id string)
	walk = func(id string) {
		node, _, err := st.Load(id, store.NoLevelHint)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if node.Kind == tree.KindLeaf {
			for _, w := range strings.Fields(node.Leaf.Text) {
				if seen[w] {
					t.Fatalf("word %q appears in more than one leaf", w)
				}
				seen[w] = true
			}
			leafWords += node.Leaf.WordCount
			return
		}
		for _, child := range node.ChildrenIDs {
			walk(child)
		}
	}
	walk(root.ID)

	if leafWords != total {
		t.Errorf("leaf partition covers %d words, want %d", leafWords, total)
	}
}

func TestBuildFromStream_DeepGrouping(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 10, 3, 6)

	// 15 chunks of 10 words, fan-out 3: 15 -> 5 -> 2 -> 1.
	res, err := idx.BuildFromStream(wordSource(150), "docs/deep.txt")
	if err != nil {
		t.Fatalf("BuildFromStream: %v", err)
	}
	if res.ChunkCount != 15 {
		t.Fatalf("expected 15 chunks, got %d", res.ChunkCount)
	}
	if res.NodeCount != 15+5+2+1 {
		t.Errorf("expected 23 nodes, got %d", res.NodeCount)
	}

	root, _, err := st.Load(res.RootID, store.NoLevelHint)
	if err != nil {
		t.Fatalf("load root: %v", err)
	}
	if root.Level != 0 || len(root.ChildrenIDs) != 2 {
		t.Errorf("unexpected root shape: level=%d children=%d", root.Level, len(root.ChildrenIDs))
	}
}

func TestBuildFromStream_StableIDsAcrossRebuilds(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 500, 10, 6)

	first, err := idx.BuildFromStream(wordSource(1200), "docs/book.txt")
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := idx.BuildFromStream(wordSource(1200), "docs/book.txt")
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if first.RootID != second.RootID {
		t.Errorf("root id changed across identical rebuilds: %q vs %q", first.RootID, second.RootID)
	}
	if first.NodeCount != second.NodeCount {
		t.Errorf("node count changed: %d vs %d", first.NodeCount, second.NodeCount)
	}
}

func TestBuildFromStream_EmptyStreamPlaceholderRoot(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 500, 10, 6)

	res, err := idx.BuildFromStream(wordSource(0), "docs/empty.txt")
	if err != nil {
		t.Fatalf("BuildFromStream: %v", err)
	}
	if res.ChunkCount != 0 || res.NodeCount != 1 {
		t.Errorf("expected single placeholder node, got chunks=%d nodes=%d", res.ChunkCount, res.NodeCount)
	}

	root, _, err := st.Load(res.RootID, store.NoLevelHint)
	if err != nil {
		t.Fatalf("load placeholder root: %v", err)
	}
	if root.Kind != tree.KindRoot || root.Summary != "Empty document" {
		t.Errorf("unexpected placeholder root: kind=%s summary=%q", root.Kind, root.Summary)
	}
}

func TestBuildFromStream_SavesRootPointerWithProvenance(t *testing.T) {
	st := newTestStore(t)
	idx := NewBalancedIndexer(st, 500, 10, 6)

	res, err := idx.BuildFromStream(wordSource(1200), "docs/book.txt")
	if err != nil {
		t.Fatalf("BuildFromStream: %v", err)
	}

	ptr := st.LoadRoot()
	if ptr == nil {
		t.Fatal("expected root pointer after build")
	}
	if ptr.RootID != res.RootID {
		t.Errorf("pointer root %q, want %q", ptr.RootID, res.RootID)
	}
	meta := ptr.Metadata
	if meta.ChunkSizeWords != 500 || meta.MaxChildrenPerNode != 10 || meta.MaxDepth != 6 {
		t.Errorf("unexpected provenance: %+v", meta)
	}
	if meta.NodeCount != res.NodeCount {
		t.Errorf("pointer node_count %d, want %d", meta.NodeCount, res.NodeCount)
	}
}
