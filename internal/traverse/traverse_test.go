package traverse

import (
	"testing"

	"github.com/dgallion1/docqa/internal/events"
	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/tree"
)

func newTestEngine(t *testing.T) (*Engine, *store.NodeStore, *events.Bus) {
	t.Helper()
	collector := metrics.NewCollector(0)
	st, err := store.NewNodeStore(t.TempDir(), store.DefaultCacheSize, collector)
	if err != nil {
		t.Fatalf("NewNodeStore: %v", err)
	}
	bus := events.NewBus(0)
	return NewEngine(st, bus, collector), st, bus
}

func saveNode(t *testing.T, st *store.NodeStore, node *tree.Node) {
	t.Helper()
	if err := st.Save(node); err != nil {
		t.Fatalf("save %s: %v", node.ID, err)
	}
}

func TestTraverse_NoRootPointer(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	res := eng.Traverse("anything", 2)
	if len(res.Traversal) != 0 || res.NodesEvaluated != 0 || res.TreeDepth != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.LatencyMs != 0 {
		t.Errorf("expected zero latency for missing root, got %d", res.LatencyMs)
	}
}

func TestTraverse_TitleMatchOutranksSummaryMatch(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	saveNode(t, st, &tree.Node{
		ID: "root", Level: 0, Title: "Root", Summary: "customer handbook",
		ChildrenIDs: []string{"policy", "shipping"},
		Kind:        tree.KindGroup, Group: &tree.GroupPayload{ChildCount: 2},
	})
	saveNode(t, st, &tree.Node{
		ID: "policy", ParentID: "root", Level: 1, Title: "Refund Policy",
		Summary:     "Refunds are honored within 30 days of purchase.",
		ChildrenIDs: []string{},
		Kind:        tree.KindGroup, Group: &tree.GroupPayload{ChildCount: 0},
	})
	saveNode(t, st, &tree.Node{
		ID: "shipping", ParentID: "root", Level: 1, Title: "Shipping",
		Summary:     "Shipping times and the refund request form.",
		ChildrenIDs: []string{},
		Kind:        tree.KindGroup, Group: &tree.GroupPayload{ChildCount: 0},
	})
	if err := st.SaveRoot("root", tree.RootMeta{NodeCount: 3}); err != nil {
		t.Fatalf("SaveRoot: %v", err)
	}

	res := eng.Traverse("What is the refund policy?", 2)

	if len(res.Traversal) < 3 {
		t.Fatalf("expected root + 2 children in trace, got %d steps", len(res.Traversal))
	}
	// Depth 2 rows: the title-boosted node must come first with a
	// strictly higher score.
	var depth2 []TraceStep
	for _, step := range res.Traversal {
		if step.Depth == 2 {
			depth2 = append(depth2, step)
		}
	}
	if len(depth2) != 2 {
		t.Fatalf("expected 2 depth-2 steps, got %d", len(depth2))
	}
	if depth2[0].NodeID != "policy" {
		t.Errorf("expected titled node first, got %q", depth2[0].NodeID)
	}
	if depth2[0].Score <= depth2[1].Score {
		t.Errorf("expected strict score dominance: %v vs %v", depth2[0].Score, depth2[1].Score)
	}
}

func TestTraverse_BeamWidthAndTermination(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	children := []string{"a", "b", "c", "d"}
	saveNode(t, st, &tree.Node{
		ID: "root", Level: 0, Title: "Root", ChildrenIDs: children,
		Kind: tree.KindGroup, Group: &tree.GroupPayload{ChildCount: len(children)},
	})
	for _, id := range children {
		saveNode(t, st, &tree.Node{
			ID: id, ParentID: "root", Level: 1, Title: "Leaf " + id,
			ChildrenIDs: []string{},
			Kind:        tree.KindLeaf, Leaf: &tree.LeafPayload{Text: "text " + id},
		})
	}
	if err := st.SaveRoot("root", tree.RootMeta{}); err != nil {
		t.Fatalf("SaveRoot: %v", err)
	}

	res := eng.Traverse("text", 2)

	if res.NodesEvaluated != 1+len(children) {
		t.Errorf("expected %d evaluated, got %d", 1+len(children), res.NodesEvaluated)
	}
	var kept2 int
	for _, step := range res.Traversal {
		if step.Depth == 2 {
			kept2++
		}
	}
	if kept2 != 2 {
		t.Errorf("beam width 2 violated: kept %d at depth 2", kept2)
	}
	if res.TreeDepth > maxDepthCeiling+1 {
		t.Errorf("depth %d exceeds ceiling", res.TreeDepth)
	}
}

func TestTraverse_TieBreakByEncounterOrder(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	saveNode(t, st, &tree.Node{
		ID: "root", Level: 0, Title: "Root", ChildrenIDs: []string{"first", "second", "third"},
		Kind: tree.KindGroup, Group: &tree.GroupPayload{ChildCount: 3},
	})
	for _, id := range []string{"first", "second", "third"} {
		saveNode(t, st, &tree.Node{
			ID: id, ParentID: "root", Level: 1, Title: "Same Title",
			Summary:     "same summary",
			ChildrenIDs: []string{},
			Kind:        tree.KindGroup, Group: &tree.GroupPayload{ChildCount: 0},
		})
	}
	if err := st.SaveRoot("root", tree.RootMeta{}); err != nil {
		t.Fatalf("SaveRoot: %v", err)
	}

	res := eng.Traverse("same title", 2)

	var depth2 []string
	for _, step := range res.Traversal {
		if step.Depth == 2 {
			depth2 = append(depth2, step.NodeID)
		}
	}
	if len(depth2) != 2 || depth2[0] != "first" || depth2[1] != "second" {
		t.Errorf("expected encounter-order tie break [first second], got %v", depth2)
	}
}

func TestTraverse_PublishesLifecycleEvents(t *testing.T) {
	eng, st, bus := newTestEngine(t)

	saveNode(t, st, &tree.Node{
		ID: "root", Level: 0, Title: "Root", ChildrenIDs: []string{},
		Kind: tree.KindRoot, Root: &tree.RootPayload{},
	})
	if err := st.SaveRoot("root", tree.RootMeta{}); err != nil {
		t.Fatalf("SaveRoot: %v", err)
	}

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	eng.Traverse("hello", 2)

	got := make(map[string]int)
	for len(sub.C) > 0 {
		ev := <-sub.C
		got[ev.Event]++
	}
	if got[events.EventNodeEvaluated] != 1 {
		t.Errorf("expected 1 node_evaluated, got %d", got[events.EventNodeEvaluated])
	}
	if got[events.EventNodeSelected] != 1 {
		t.Errorf("expected 1 node_selected, got %d", got[events.EventNodeSelected])
	}
	if got[events.EventAnswerGenerated] != 1 {
		t.Errorf("expected 1 answer_generated, got %d", got[events.EventAnswerGenerated])
	}
}
