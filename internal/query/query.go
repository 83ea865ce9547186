// Package query answers questions over the index: traversal-backed
// context selection, prompt assembly, model invocation, and epoch-keyed
// result caches.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/lru"
	"github.com/dgallion1/docqa/internal/manager"
	"github.com/dgallion1/docqa/internal/traverse"
	"github.com/dgallion1/docqa/internal/tree"
)

// ErrEmptyQuestion rejects blank questions before any work happens.
var ErrEmptyQuestion = errors.New("question must be a non-empty string")

const (
	// DefaultCacheSize bounds each of the answer and trace caches.
	DefaultCacheSize = 128
	// DefaultTopK caps how many contexts feed the prompt.
	DefaultTopK = 6
	// DefaultTopKPerLevel is the traversal beam width for answering.
	DefaultTopKPerLevel = 2

	// contextMaxChars truncates each context's text.
	contextMaxChars = 2000

	systemPrompt = "Answer accurately and concisely from provided contexts."
	emptyAnswer  = "I could not generate an answer from the indexed documents."
)

// QueryResult is one answered question.
type QueryResult struct {
	Answer    string `json:"answer"`
	LatencyMs int64  `json:"latency_ms"`
}

// TraceStep is one row of a retrieval trace as served to clients.
type TraceStep struct {
	Node     string  `json:"node"`
	NodeID   string  `json:"node_id,omitempty"`
	Selected bool    `json:"selected"`
	Level    int     `json:"level"`
	Score    float64 `json:"score"`
	Depth    int     `json:"depth"`
}

// TraceResult is the retrieval trace for one question.
type TraceResult struct {
	Steps                []TraceStep `json:"steps"`
	Latency              int64       `json:"latency"`
	Tokens               int         `json:"tokens"`
	NodesLoadedFromCache int64       `json:"nodes_loaded_from_cache"`
	NodesLoadedFromDisk  int64       `json:"nodes_loaded_from_disk"`
	NodesEvaluated       int         `json:"nodes_evaluated"`
	TreeDepth            int         `json:"tree_depth"`
}

// contextItem is one selected context block for the prompt.
type contextItem struct {
	docName string
	title   string
	summary string
}

// Engine serves queries against the manager's current index snapshot.
type Engine struct {
	modelName string
	completer llm.Completer
	manager   *manager.Manager
	traversal *traverse.Engine
	logger    *slog.Logger

	topK         int
	topKPerLevel int

	dataMu sync.Mutex
	data   *tree.IndexPayload

	cacheMu sync.Mutex
	answers *lru.Cache[string, QueryResult]
	traces  *lru.Cache[string, TraceResult]
}

type Options struct {
	CacheSize    int
	TopK         int
	TopKPerLevel int
}

func NewEngine(modelName string, completer llm.Completer, mgr *manager.Manager, trav *traverse.Engine, logger *slog.Logger, opts Options) *Engine {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopKPerLevel <= 0 {
		opts.TopKPerLevel = DefaultTopKPerLevel
	}
	return &Engine{
		modelName:    modelName,
		completer:    completer,
		manager:      mgr,
		traversal:    trav,
		logger:       logger,
		topK:         opts.TopK,
		topKPerLevel: opts.TopKPerLevel,
		answers:      lru.New[string, QueryResult](opts.CacheSize),
		traces:       lru.New[string, TraceResult](opts.CacheSize),
	}
}

func normalize(question string) string {
	return strings.Join(traverse.Tokenize(question), " ")
}

// refreshIfStale reconciles the held snapshot against the manager's
// latest, adopting it when its epoch is at least the current one.
func (e *Engine) refreshIfStale() *tree.IndexPayload {
	e.dataMu.Lock()
	defer e.dataMu.Unlock()

	latest, err := e.manager.GetOrCreate(false)
	if err != nil {
		if e.data == nil {
			e.logger.Warn("no index snapshot available", "error", err)
		}
		return e.data
	}
	var currentEpoch int64
	if e.data != nil {
		currentEpoch = e.data.BuiltAtEpoch
	}
	if latest.BuiltAtEpoch >= currentEpoch {
		e.data = latest
	}
	return e.data
}

func (e *Engine) cacheKey(question string, data *tree.IndexPayload) string {
	var epoch int64
	if data != nil {
		epoch = data.BuiltAtEpoch
	}
	return fmt.Sprintf("%s::%d", normalize(question), epoch)
}

// selectContexts prefers traversal over the hierarchical tree; the flat
// structure scan only runs when no tree produced any context.
func (e *Engine) selectContexts(question string, data *tree.IndexPayload) []contextItem {
	if contexts := e.contextsFromTree(question); len(contexts) > 0 {
		return contexts
	}
	return e.contextsFromStructure(question, data)
}

// contextsFromTree turns the traversal's kept nodes into prompt
// contexts, leaf text first, summary otherwise.
func (e *Engine) contextsFromTree(question string) []contextItem {
	res := e.traversal.Traverse(question, e.topKPerLevel)
	var contexts []contextItem
	for _, node := range res.SelectedNodes {
		text := strings.TrimSpace(node.Text())
		if text == "" {
			continue
		}
		if len(text) > contextMaxChars {
			text = text[:contextMaxChars]
		}
		docName := node.FilePath
		if docName == "" {
			docName = "document"
		}
		title := node.Title
		if title == "" {
			title = "Section"
		}
		contexts = append(contexts, contextItem{docName: docName, title: title, summary: text})
		if len(contexts) >= e.topK {
			break
		}
	}
	return contexts
}

// flatNode is one leaf of the flattened semantic structure.
type flatNode struct {
	docName string
	title   string
	summary string
}

func flattenStructure(data *tree.IndexPayload) []flatNode {
	if data == nil {
		return nil
	}
	var out []flatNode
	var walk func(nodes []tree.StructureNode, docName string)
	walk = func(nodes []tree.StructureNode, docName string) {
		for _, n := range nodes {
			title := strings.TrimSpace(n.Title)
			summary := strings.TrimSpace(n.Summary)
			if title != "" || summary != "" {
				out = append(out, flatNode{docName: docName, title: title, summary: summary})
			}
			walk(n.Nodes, docName)
		}
	}
	for _, doc := range data.Documents {
		name := doc.DocName
		if name == "" {
			name = "unknown_document"
		}
		walk(doc.Structure, name)
	}
	return out
}

// contextsFromStructure is the degenerate no-tree fallback: score every
// flattened structure leaf, dedupe by document and title, and adapt the
// context count to the question length.
func (e *Engine) contextsFromStructure(question string, data *tree.IndexPayload) []contextItem {
	tokens := traverse.Tokenize(question)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]bool, len(tokens))
	var distinct []string
	for _, tok := range tokens {
		if !terms[tok] {
			terms[tok] = true
			distinct = append(distinct, tok)
		}
	}

	adaptiveTopK := e.topK
	switch {
	case len(tokens) <= 4:
		adaptiveTopK = 4
	case len(tokens) >= 12:
		adaptiveTopK = 8
	}

	type scoredFlat struct {
		score float64
		node  flatNode
	}
	var scored []scoredFlat
	for _, node := range flattenStructure(data) {
		titleLower := strings.ToLower(node.title)
		haystack := titleLower + " " + strings.ToLower(node.summary)

		var overlap, titleOverlap int
		for _, term := range distinct {
			if strings.Contains(haystack, term) {
				overlap++
			}
			if strings.Contains(titleLower, term) {
				titleOverlap++
			}
		}
		if overlap == 0 {
			continue
		}
		coverage := float64(overlap) / float64(len(distinct))
		scored = append(scored, scoredFlat{
			score: float64(overlap) + float64(titleOverlap)*1.5 + coverage,
			node:  node,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	seen := make(map[string]bool)
	var contexts []contextItem
	for _, sf := range scored {
		key := strings.ToLower(strings.TrimSpace(sf.node.docName)) + "\x00" + strings.ToLower(strings.TrimSpace(sf.node.title))
		if seen[key] {
			continue
		}
		seen[key] = true
		contexts = append(contexts, contextItem{docName: sf.node.docName, title: sf.node.title, summary: sf.node.summary})
		if len(contexts) >= adaptiveTopK {
			break
		}
	}
	return contexts
}

func buildPrompt(question string, contexts []contextItem) string {
	var blocks []string
	for i, ctx := range contexts {
		blocks = append(blocks, fmt.Sprintf("[Context %d]\nDocument: %s\nSection: %s\nSummary: %s\n", i+1, ctx.docName, ctx.title, ctx.summary))
	}
	contextText := "No relevant context found."
	if len(blocks) > 0 {
		contextText = strings.Join(blocks, "\n")
	}
	return fmt.Sprintf(
		"You are a document Q&A assistant. Answer the user's question only from the "+
			"provided context. If the answer is not present, say you cannot find it in "+
			"the indexed documents.\n\nQuestion:\n%s\n\nContext:\n%s\n",
		question, contextText)
}

// Query answers a question, serving from the answer cache when the same
// normalized question was already answered against this build epoch.
func (e *Engine) Query(ctx context.Context, question string) (*QueryResult, error) {
	started := time.Now()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	data := e.refreshIfStale()
	cleaned := strings.TrimSpace(question)
	key := e.cacheKey(cleaned, data)

	e.cacheMu.Lock()
	cached, ok := e.answers.Get(key)
	e.cacheMu.Unlock()
	if ok {
		return &QueryResult{Answer: cached.Answer, LatencyMs: 1}, nil
	}

	contexts := e.selectContexts(cleaned, data)
	prompt := buildPrompt(cleaned, contexts)

	answer, err := e.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswer
	}

	latency := time.Since(started).Milliseconds()
	e.logger.Info("query answered", "latency_ms", latency, "contexts", len(contexts))

	result := QueryResult{Answer: answer, LatencyMs: latency}
	e.cacheMu.Lock()
	e.answers.Put(key, result)
	e.cacheMu.Unlock()
	return &result, nil
}

// RetrievalTrace reports the traversal a question takes through the
// tree, without a model call.
func (e *Engine) RetrievalTrace(question string) (*TraceResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	data := e.refreshIfStale()
	cleaned := strings.TrimSpace(question)
	key := e.cacheKey(cleaned, data)

	e.cacheMu.Lock()
	cached, ok := e.traces.Get(key)
	e.cacheMu.Unlock()
	if ok {
		out := cached
		out.Latency = 1
		return &out, nil
	}

	res := e.traversal.Traverse(cleaned, e.topKPerLevel)
	steps := make([]TraceStep, 0, len(res.Traversal))
	for _, row := range res.Traversal {
		steps = append(steps, TraceStep{
			Node:     row.Title,
			NodeID:   row.NodeID,
			Selected: true,
			Level:    row.Level,
			Score:    row.Score,
			Depth:    row.Depth,
		})
	}
	if len(steps) == 0 {
		steps = []TraceStep{{Node: "No relevant section found", Selected: false}}
	}

	result := TraceResult{
		Steps:                steps,
		Latency:              res.LatencyMs,
		Tokens:               estimateTokens(cleaned, len(steps)),
		NodesLoadedFromCache: res.NodesLoadedFromCache,
		NodesLoadedFromDisk:  res.NodesLoadedFromDisk,
		NodesEvaluated:       res.NodesEvaluated,
		TreeDepth:            res.TreeDepth,
	}
	e.cacheMu.Lock()
	e.traces.Put(key, result)
	e.cacheMu.Unlock()
	return &result, nil
}

func estimateTokens(question string, steps int) int {
	estimate := 40 + utf8.RuneCountInString(question)/3 + steps*50
	if estimate < 80 {
		estimate = 80
	}
	return estimate
}

// IndexStructure returns the current payload for visualization.
func (e *Engine) IndexStructure() *tree.IndexPayload {
	return e.refreshIfStale()
}
