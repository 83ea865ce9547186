package tree

// NodeKind discriminates what a tree node represents.
type NodeKind string

const (
	KindLeaf  NodeKind = "leaf"  // Raw chunk text at the bottom of the tree.
	KindGroup NodeKind = "group" // Internal grouping node over contiguous children.
	KindRoot  NodeKind = "root"  // Document root or the global root.
)

// LeafPayload carries the raw chunk content of a leaf node.
type LeafPayload struct {
	Text       string `json:"text"`
	WordCount  int    `json:"word_count"`
	ChunkIndex int    `json:"chunk_index"`
}

// GroupPayload carries grouping-node bookkeeping.
type GroupPayload struct {
	ChildCount int `json:"child_count"`
}

// RootPayload carries root-node bookkeeping.
type RootPayload struct {
	ChildCount int    `json:"child_count"`
	Source     string `json:"source,omitempty"`
}

// Node is one entry in the hierarchical content tree. A node is immutable
// once persisted, except that ParentID is backfilled once when its parent
// is created. Every child in ChildrenIDs lives at exactly Level+1.
type Node struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parent_id,omitempty"` // Back-reference only, not ownership.
	ChildrenIDs []string `json:"children_ids"`
	Level       int      `json:"level"` // 0 = root.
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Fingerprint string   `json:"fingerprint"`
	FilePath    string   `json:"file_path"`

	Kind NodeKind `json:"kind"`
	// Exactly one of these is set, matching Kind.
	Leaf  *LeafPayload  `json:"leaf,omitempty"`
	Group *GroupPayload `json:"group,omitempty"`
	Root  *RootPayload  `json:"root,omitempty"`
}

// Text returns the best available content for a node: raw leaf text if
// present, otherwise the summary.
func (n *Node) Text() string {
	if n.Leaf != nil && n.Leaf.Text != "" {
		return n.Leaf.Text
	}
	return n.Summary
}

// RootMeta is the build provenance recorded alongside a root pointer.
type RootMeta struct {
	FilePath           string `json:"file_path,omitempty"`
	ChunkSizeWords     int    `json:"chunk_size_words,omitempty"`
	MaxChildrenPerNode int    `json:"max_children_per_node,omitempty"`
	MaxDepth           int    `json:"max_depth,omitempty"`
	NodeCount          int    `json:"node_count,omitempty"`
	RootType           string `json:"root_type,omitempty"`
	DocRootCount       int    `json:"doc_root_count,omitempty"`
}

// RootPointer identifies a tree's current root and its build provenance.
// There is one per document tree and one global. It is read fresh on every
// traversal so readers always see the latest build.
type RootPointer struct {
	RootID   string   `json:"root_id"`
	Metadata RootMeta `json:"metadata"`
}

// StructureNode is one entry in an externally produced semantic outline.
type StructureNode struct {
	Title      string          `json:"title"`
	NodeID     string          `json:"node_id"`
	Summary    string          `json:"summary"`
	StartIndex int             `json:"start_index"`
	EndIndex   int             `json:"end_index"`
	Nodes      []StructureNode `json:"nodes"`
}

// DocumentStructure is the structure-builder collaborator's output for one
// document.
type DocumentStructure struct {
	DocName        string          `json:"doc_name"`
	DocDescription string          `json:"doc_description"`
	Structure      []StructureNode `json:"structure"`
}

// DocumentEntry describes one indexed document inside the payload.
type DocumentEntry struct {
	DocName                string          `json:"doc_name"`
	DocDescription         string          `json:"doc_description"`
	Structure              []StructureNode `json:"structure"`
	HierarchicalRootID     string          `json:"hierarchical_root_id"`
	HierarchicalChunkCount int             `json:"hierarchical_chunk_count"`
}

// IndexPayload is the full on-disk index record, replaced wholesale on
// every build. BuiltAtEpoch is a monotonically increasing build version
// stamp and doubles as the cache-invalidation key suffix.
type IndexPayload struct {
	ModelName       string            `json:"model_name"`
	BuiltAtEpoch    int64             `json:"built_at_epoch"`
	DocumentCount   int               `json:"document_count"`
	Documents       []DocumentEntry   `json:"documents"`
	DocFingerprints map[string]string `json:"doc_fingerprints"`
}
