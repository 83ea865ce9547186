// Package indexer builds balanced hierarchical trees from streamed text
// blocks and persists them through the node store.
package indexer

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/tree"
)

const (
	// DefaultChunkSizeWords flushes a leaf chunk once this many words
	// accumulate.
	DefaultChunkSizeWords = 500
	// DefaultMaxChildren bounds the fan-out of grouping nodes.
	DefaultMaxChildren = 10
	// DefaultMaxDepth is the level leaves start at; grouping walks
	// upward toward level 0.
	DefaultMaxDepth = 6

	summaryMaxWords = 40
	leafIDSeedChars = 80
)

// BlockSource feeds text blocks to the indexer one at a time. Returning
// an error from emit aborts the stream.
type BlockSource func(emit func(block string) error) error

// BuildResult reports what one document build produced.
type BuildResult struct {
	RootID     string
	NodeCount  int
	ChunkCount int
}

// BalancedIndexer chunks a word stream and folds the chunks into a
// balanced tree: contiguous runs of at most maxChildren nodes per
// parent, repeated per level until a single root remains.
type BalancedIndexer struct {
	store          *store.NodeStore
	chunkSizeWords int
	maxChildren    int
	maxDepth       int
}

func NewBalancedIndexer(st *store.NodeStore, chunkSizeWords, maxChildren, maxDepth int) *BalancedIndexer {
	if chunkSizeWords <= 0 {
		chunkSizeWords = DefaultChunkSizeWords
	}
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildren
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &BalancedIndexer{
		store:          st,
		chunkSizeWords: chunkSizeWords,
		maxChildren:    maxChildren,
		maxDepth:       maxDepth,
	}
}

// BuildFromStream consumes the block source, persists every tree node,
// and saves the document's root pointer last so readers never observe a
// pointer to a half-written tree.
func (b *BalancedIndexer) BuildFromStream(source BlockSource, filePath string) (*BuildResult, error) {
	chunks, err := b.chunkWords(source)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filePath, err)
	}

	leaves := b.buildLeaves(chunks, filePath)
	root, nodes := b.buildTree(leaves, filePath)

	for _, node := range nodes {
		if err := b.store.Save(node); err != nil {
			return nil, fmt.Errorf("save node %s: %w", node.ID, err)
		}
	}
	err = b.store.SaveRoot(root.ID, tree.RootMeta{
		FilePath:           filePath,
		ChunkSizeWords:     b.chunkSizeWords,
		MaxChildrenPerNode: b.maxChildren,
		MaxDepth:           b.maxDepth,
		NodeCount:          len(nodes),
	})
	if err != nil {
		return nil, fmt.Errorf("save root pointer for %s: %w", filePath, err)
	}

	return &BuildResult{RootID: root.ID, NodeCount: len(nodes), ChunkCount: len(leaves)}, nil
}

// chunkWords accumulates words across blocks, flushing a chunk every
// chunkSizeWords plus a final partial chunk.
func (b *BalancedIndexer) chunkWords(source BlockSource) ([]string, error) {
	var chunks []string
	words := make([]string, 0, b.chunkSizeWords)

	err := source(func(block string) error {
		for _, word := range strings.Fields(block) {
			words = append(words, word)
			if len(words) >= b.chunkSizeWords {
				chunks = append(chunks, strings.Join(words, " "))
				words = words[:0]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(words) > 0 {
		chunks = append(chunks, strings.Join(words, " "))
	}
	return chunks, nil
}

func (b *BalancedIndexer) buildLeaves(chunks []string, filePath string) []*tree.Node {
	leaves := make([]*tree.Node, 0, len(chunks))
	for i, text := range chunks {
		seed := text
		if len(seed) > leafIDSeedChars {
			seed = seed[:leafIDSeedChars]
		}
		leaves = append(leaves, &tree.Node{
			ID:          fmt.Sprintf("chunk-%s", stableHash(fmt.Sprintf("%s:%d:%s", filePath, i, seed))),
			ChildrenIDs: []string{},
			Level:       b.maxDepth,
			Title:       fmt.Sprintf("Chunk %d", i+1),
			Summary:     summarize(text),
			Fingerprint: stableHash(text),
			FilePath:    filePath,
			Kind:        tree.KindLeaf,
			Leaf: &tree.LeafPayload{
				Text:       text,
				WordCount:  len(strings.Fields(text)),
				ChunkIndex: i,
			},
		})
	}
	return leaves
}

// groupLevel partitions current into contiguous runs of at most
// maxChildren and produces one parent per run, backfilling each child's
// ParentID.
func (b *BalancedIndexer) groupLevel(current []*tree.Node, level int, filePath string) []*tree.Node {
	var grouped []*tree.Node
	for i := 0; i < len(current); i += b.maxChildren {
		end := i + b.maxChildren
		if end > len(current) {
			end = len(current)
		}
		block := current[i:end]

		childIDs := make([]string, 0, len(block))
		var summaries []string
		for _, child := range block {
			childIDs = append(childIDs, child.ID)
			if child.Summary != "" {
				summaries = append(summaries, child.Summary)
			}
		}
		combined := strings.Join(summaries, " ")
		seed := strings.Join(childIDs, "|")
		fingerprintSeed := combined
		if fingerprintSeed == "" {
			fingerprintSeed = seed
		}

		parent := &tree.Node{
			ID:          fmt.Sprintf("lvl%d-%s", level, stableHash(seed)),
			ChildrenIDs: childIDs,
			Level:       level,
			Title:       titleForLevel(level, i/b.maxChildren),
			Summary:     summarize(combined),
			Fingerprint: stableHash(fingerprintSeed),
			FilePath:    filePath,
			Kind:        tree.KindGroup,
			Group:       &tree.GroupPayload{ChildCount: len(block)},
		}
		for _, child := range block {
			child.ParentID = parent.ID
		}
		grouped = append(grouped, parent)
	}
	return grouped
}

// buildTree folds the leaves into a single root, or synthesizes an empty
// placeholder root when the stream produced no chunks. The surviving node
// is promoted to level 0 whatever level the grouping stopped at.
func (b *BalancedIndexer) buildTree(leaves []*tree.Node, filePath string) (*tree.Node, []*tree.Node) {
	all := make([]*tree.Node, 0, len(leaves))
	all = append(all, leaves...)

	current := leaves
	for level := b.maxDepth - 1; len(current) > 1 && level >= 0; level-- {
		grouped := b.groupLevel(current, level, filePath)
		all = append(all, grouped...)
		current = grouped
	}

	if len(current) == 0 {
		root := &tree.Node{
			ID:          fmt.Sprintf("root-%s", stableHash(filePath)),
			ChildrenIDs: []string{},
			Level:       0,
			Title:       "Root",
			Summary:     "Empty document",
			Fingerprint: stableHash(filePath),
			FilePath:    filePath,
			Kind:        tree.KindRoot,
			Root:        &tree.RootPayload{ChildCount: 0},
		}
		return root, append(all, root)
	}

	root := current[0]
	root.Level = 0
	root.Title = "Root"
	return root, all
}

func titleForLevel(level, index int) string {
	switch level {
	case 0:
		return "Root"
	case 1:
		return fmt.Sprintf("Volume %d", index+1)
	case 2:
		return fmt.Sprintf("Chapter %d", index+1)
	case 3:
		return fmt.Sprintf("Section %d", index+1)
	default:
		return fmt.Sprintf("Chunk Group %d", index+1)
	}
}

func summarize(text string) string {
	words := strings.Fields(text)
	if len(words) > summaryMaxWords {
		words = words[:summaryMaxWords]
	}
	return strings.Join(words, " ")
}

func stableHash(value string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(value))
}
