// Package traverse walks a persisted hierarchical tree with a
// level-synchronous beam search, scoring nodes against query terms and
// pruning to a per-level beam width.
package traverse

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/events"
	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/tree"
)

// DefaultTopKPerLevel is the beam width when callers pass 0.
const DefaultTopKPerLevel = 3

// maxDepthCeiling bounds traversal rounds regardless of tree shape.
const maxDepthCeiling = 6

// titleBoost weights matches inside a node title above body matches.
const titleBoost = 1.5

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// TraceStep is one kept node in the traversal record.
type TraceStep struct {
	Depth  int     `json:"depth"`
	NodeID string  `json:"node_id"`
	Title  string  `json:"title"`
	Level  int     `json:"level"`
	Score  float64 `json:"score"`
}

// Result is the full outcome of one traversal.
type Result struct {
	Query                string       `json:"query"`
	Traversal            []TraceStep  `json:"traversal"`
	NodesLoadedFromCache int64        `json:"nodes_loaded_from_cache"`
	NodesLoadedFromDisk  int64        `json:"nodes_loaded_from_disk"`
	NodesEvaluated       int          `json:"nodes_evaluated"`
	TreeDepth            int          `json:"tree_depth"`
	LatencyMs            int64        `json:"latency_ms"`
	SelectedNodes        []*tree.Node `json:"selected_nodes"`
}

// Engine runs beam searches over the node store, publishing progress to
// the event bus and recording counters on the collector.
type Engine struct {
	store     *store.NodeStore
	bus       *events.Bus
	collector *metrics.Collector
}

func NewEngine(st *store.NodeStore, bus *events.Bus, collector *metrics.Collector) *Engine {
	return &Engine{store: st, bus: bus, collector: collector}
}

// Tokenize lowercases and splits text into alphanumeric runs.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// ScoreText counts distinct query terms appearing in title+summary, with
// terms found in the title alone weighted an extra titleBoost.
func ScoreText(title, summary string, queryTerms []string) float64 {
	haystack := strings.ToLower(title + " " + summary)
	lowerTitle := strings.ToLower(title)
	var overlap, titleOverlap int
	for _, term := range queryTerms {
		if strings.Contains(haystack, term) {
			overlap++
		}
		if strings.Contains(lowerTitle, term) {
			titleOverlap++
		}
	}
	return float64(overlap) + float64(titleOverlap)*titleBoost
}

// distinctTerms dedupes tokens preserving first-seen order so scoring is
// deterministic.
func distinctTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// Traverse beam-searches the tree for the query. With no root pointer it
// returns an empty result with zero latency.
func (e *Engine) Traverse(query string, topKPerLevel int) *Result {
	if topKPerLevel <= 0 {
		topKPerLevel = DefaultTopKPerLevel
	}
	started := time.Now()

	rootPointer := e.store.LoadRoot()
	if rootPointer == nil {
		return &Result{Query: query, Traversal: []TraceStep{}, SelectedNodes: []*tree.Node{}}
	}

	queryTerms := distinctTerms(Tokenize(query))
	cacheBefore, diskBefore := e.collector.CacheCounters()

	var (
		traversal []TraceStep
		selected  []*tree.Node
		evaluated int
		depth     int
	)
	frontier := []string{rootPointer.RootID}

	for len(frontier) > 0 && depth <= maxDepthCeiling {
		depth++

		loaded := make([]*tree.Node, 0, len(frontier))
		for _, id := range frontier {
			node, source, err := e.store.Load(id, store.NoLevelHint)
			if err != nil || node == nil {
				continue
			}
			e.bus.Publish(events.Event{
				Event:  events.EventNodeEvaluated,
				NodeID: node.ID,
				Level:  node.Level,
				Source: string(source),
				Title:  node.Title,
			})
			e.collector.RecordNodeEvaluated()
			loaded = append(loaded, node)
			evaluated++
		}
		if len(loaded) == 0 {
			break
		}

		type scoredNode struct {
			node  *tree.Node
			score float64
		}
		scored := make([]scoredNode, 0, len(loaded))
		for _, node := range loaded {
			scored = append(scored, scoredNode{node, ScoreText(node.Title, node.Summary, queryTerms)})
		}
		// Stable sort keeps encounter order on score ties.
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
		kept := scored
		if len(kept) > topKPerLevel {
			kept = kept[:topKPerLevel]
		}

		var next []string
		for _, sn := range kept {
			e.bus.Publish(events.Event{
				Event:  events.EventNodeSelected,
				NodeID: sn.node.ID,
				Level:  sn.node.Level,
				Title:  sn.node.Title,
			})
			traversal = append(traversal, TraceStep{
				Depth:  depth,
				NodeID: sn.node.ID,
				Title:  sn.node.Title,
				Level:  sn.node.Level,
				Score:  sn.score,
			})
			next = append(next, sn.node.ChildrenIDs...)
			selected = append(selected, sn.node)
		}
		frontier = next
	}

	latencyMs := time.Since(started).Milliseconds()
	e.collector.RecordTreeDepth(depth)
	e.collector.RecordRetrievalLatency(latencyMs)
	cacheAfter, diskAfter := e.collector.CacheCounters()

	e.bus.Publish(events.Event{Event: events.EventAnswerGenerated})

	return &Result{
		Query:                query,
		Traversal:            traversal,
		NodesLoadedFromCache: max(0, cacheAfter-cacheBefore),
		NodesLoadedFromDisk:  max(0, diskAfter-diskBefore),
		NodesEvaluated:       evaluated,
		TreeDepth:            depth,
		LatencyMs:            latencyMs,
		SelectedNodes:        selected,
	}
}
