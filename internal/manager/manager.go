// Package manager orchestrates incremental index builds: fingerprint
// detection, per-document structure and tree builds, the global root,
// and the on-disk index payload with an in-memory snapshot.
package manager

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docqa/internal/indexer"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/structure"
	"github.com/dgallion1/docqa/internal/tree"
)

// ErrNotFound marks missing-input conditions: absent docs directory, no
// supported documents, or a missing saved payload on explicit load.
var ErrNotFound = errors.New("not found")

// indexFileName is the payload file inside the index directory.
const indexFileName = "index.json"

// fingerprintPrefixBytes bounds how much content feeds the fingerprint.
// Changes past this offset with identical size and mtime go undetected;
// accepted approximation.
const fingerprintPrefixBytes = 1 << 20

// Manager owns the index lifecycle for one docs directory.
type Manager struct {
	docsDir   string
	indexDir  string
	modelName string

	store   *store.NodeStore
	indexer *indexer.BalancedIndexer
	builder structure.Builder
	logger  *slog.Logger

	dataMu    sync.Mutex
	data      *tree.IndexPayload
	fileMtime time.Time
	haveMtime bool
	rebuildMu sync.Mutex
}

func New(docsDir, indexDir, modelName string, st *store.NodeStore, idx *indexer.BalancedIndexer, builder structure.Builder, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Manager{
		docsDir:   docsDir,
		indexDir:  indexDir,
		modelName: modelName,
		store:     st,
		indexer:   idx,
		builder:   builder,
		logger:    logger,
	}, nil
}

func (m *Manager) indexFile() string {
	return filepath.Join(m.indexDir, indexFileName)
}

// Fingerprint hashes name, size, mtime, and the first 1 MB of content.
// Cheap change detector, not collision-proof.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	h := sha256.New()
	h.Write([]byte(info.Name()))
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, io.LimitReader(f, fingerprintPrefixBytes)); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// supportedFiles enumerates indexable documents in sorted order so
// builds are deterministic.
func (m *Manager) supportedFiles() ([]string, error) {
	entries, err := os.ReadDir(m.docsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("docs folder %q: %w", m.docsDir, ErrNotFound)
		}
		return nil, fmt.Errorf("read docs folder %q: %w", m.docsDir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if parser.IsSupported(entry.Name()) {
			files = append(files, filepath.Join(m.docsDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// previousDocMaps reads the last saved payload for fingerprint reuse.
// A corrupt payload counts as no previous index.
func (m *Manager) previousDocMaps() (map[string]tree.DocumentEntry, map[string]string) {
	data, err := os.ReadFile(m.indexFile())
	if err != nil {
		return nil, nil
	}
	var payload tree.IndexPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		m.logger.Warn("previous index is unreadable, full rebuild will be used", "error", err)
		return nil, nil
	}
	docs := make(map[string]tree.DocumentEntry, len(payload.Documents))
	for _, doc := range payload.Documents {
		docs[doc.DocName] = doc
	}
	return docs, payload.DocFingerprints
}

// Build indexes every supported document, reusing entries whose
// fingerprints are unchanged, then persists the global root and the
// full payload. Any per-document failure aborts the whole build.
func (m *Manager) Build() (*tree.IndexPayload, error) {
	files, err := m.supportedFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported documents in %q (add .pdf, .md, .markdown, .txt, .html, or .docx files): %w", m.docsDir, ErrNotFound)
	}

	buildStart := time.Now()
	m.logger.Info("starting index build", "documents", len(files))

	previousDocs, previousFingerprints := m.previousDocMaps()
	indexed := make([]tree.DocumentEntry, 0, len(files))
	currentFingerprints := make(map[string]string, len(files))
	var docRootIDs []string
	var reused int

	for _, path := range files {
		docStart := time.Now()
		name := filepath.Base(path)

		fingerprint, err := Fingerprint(path)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", name, err)
		}
		currentFingerprints[name] = fingerprint

		if prev, ok := previousDocs[name]; ok && previousFingerprints[name] == fingerprint {
			if prev.HierarchicalRootID == "" {
				res, err := m.buildTree(path)
				if err != nil {
					return nil, fmt.Errorf("index %s: %w", name, err)
				}
				prev.HierarchicalRootID = res.RootID
				prev.HierarchicalChunkCount = res.ChunkCount
			}
			indexed = append(indexed, prev)
			docRootIDs = append(docRootIDs, prev.HierarchicalRootID)
			reused++
			m.logger.Info("reused cached index", "doc", name, "elapsed", time.Since(docStart))
			continue
		}

		ds, err := m.builder.BuildStructure(path)
		if err != nil {
			return nil, fmt.Errorf("structure for %s: %w", name, err)
		}
		res, err := m.buildTree(path)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", name, err)
		}
		indexed = append(indexed, tree.DocumentEntry{
			DocName:                ds.DocName,
			DocDescription:         ds.DocDescription,
			Structure:              ds.Structure,
			HierarchicalRootID:     res.RootID,
			HierarchicalChunkCount: res.ChunkCount,
		})
		docRootIDs = append(docRootIDs, res.RootID)
		m.logger.Info("indexed document", "doc", name, "chunks", res.ChunkCount, "elapsed", time.Since(docStart))
	}

	payload := &tree.IndexPayload{
		ModelName:       m.modelName,
		BuiltAtEpoch:    time.Now().Unix(),
		DocumentCount:   len(indexed),
		Documents:       indexed,
		DocFingerprints: currentFingerprints,
	}
	if err := m.buildGlobalRoot(docRootIDs); err != nil {
		return nil, err
	}
	if err := m.savePayload(payload); err != nil {
		return nil, err
	}

	m.logger.Info("index build completed",
		"elapsed", time.Since(buildStart),
		"reused", reused,
		"rebuilt", len(indexed)-reused)
	return payload, nil
}

// buildTree streams the document's blocks into the balanced indexer.
func (m *Manager) buildTree(path string) (*indexer.BuildResult, error) {
	streamer, err := parser.ForFile(path)
	if err != nil {
		return nil, err
	}
	source := func(emit func(string) error) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return streamer.Stream(f, emit)
	}
	return m.indexer.BuildFromStream(source, path)
}

// buildGlobalRoot persists one root over all per-document roots and
// points the root pointer at it. The id is stable only while the
// document set and order are unchanged.
func (m *Manager) buildGlobalRoot(docRootIDs []string) error {
	seed := "empty"
	if len(docRootIDs) > 0 {
		seed = strings.Join(docRootIDs, "|")
	}
	sum := sha256.Sum256([]byte(seed))
	rootID := fmt.Sprintf("global-root-%x", sum[:4])

	children := docRootIDs
	if children == nil {
		children = []string{}
	}
	node := &tree.Node{
		ID:          rootID,
		ChildrenIDs: children,
		Level:       0,
		Title:       "Root",
		Summary:     "Global document root",
		Fingerprint: rootID,
		FilePath:    m.indexFile(),
		Kind:        tree.KindRoot,
		Root: &tree.RootPayload{
			ChildCount: len(docRootIDs),
			Source:     "global_hierarchical_root",
		},
	}
	if err := m.store.Save(node); err != nil {
		return fmt.Errorf("save global root: %w", err)
	}
	err := m.store.SaveRoot(rootID, tree.RootMeta{
		RootType:     "global",
		DocRootCount: len(docRootIDs),
	})
	if err != nil {
		return fmt.Errorf("save global root pointer: %w", err)
	}
	return nil
}

// savePayload replaces the payload atomically: write a temp file in the
// same directory, then rename over the old payload so readers never see
// a torn write.
func (m *Manager) savePayload(payload *tree.IndexPayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tmp, err := os.CreateTemp(m.indexDir, indexFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp payload: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close payload: %w", err)
	}
	if err := os.Rename(tmpName, m.indexFile()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace payload: %w", err)
	}
	if info, err := os.Stat(m.indexFile()); err == nil {
		m.fileMtime = info.ModTime()
		m.haveMtime = true
	} else {
		m.haveMtime = false
	}
	m.logger.Info("saved index payload", "path", m.indexFile())
	return nil
}

// loadPayload reads the saved payload. Missing file maps to ErrNotFound;
// a corrupt file surfaces as a load error.
func (m *Manager) loadPayload() (*tree.IndexPayload, error) {
	data, err := os.ReadFile(m.indexFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("index file %q: %w", m.indexFile(), ErrNotFound)
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}
	var payload tree.IndexPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("index load failure: %w", err)
	}
	if info, err := os.Stat(m.indexFile()); err == nil {
		m.fileMtime = info.ModTime()
		m.haveMtime = true
	}
	return &payload, nil
}

// reloadIfChanged adopts a newer on-disk payload. Pull-based coherency,
// no file-system watch.
func (m *Manager) reloadIfChanged() {
	info, err := os.Stat(m.indexFile())
	if err != nil {
		return
	}
	if !m.haveMtime {
		m.fileMtime = info.ModTime()
		m.haveMtime = true
		return
	}
	if info.ModTime().After(m.fileMtime) {
		m.logger.Info("detected newer index file on disk, reloading snapshot")
		if payload, err := m.loadPayload(); err == nil {
			m.data = payload
		} else {
			m.logger.Warn("reload of newer index failed", "error", err)
		}
	}
}

// GetOrCreate returns the current payload, loading or building as
// needed. With rebuild true it always rebuilds from documents.
func (m *Manager) GetOrCreate(rebuild bool) (*tree.IndexPayload, error) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()

	if m.data != nil && !rebuild {
		m.reloadIfChanged()
		return m.data, nil
	}

	if rebuild {
		m.logger.Info("rebuild requested, building index from documents")
		payload, err := m.Build()
		if err != nil {
			return nil, err
		}
		m.data = payload
		return m.data, nil
	}

	if _, err := os.Stat(m.indexFile()); err == nil {
		m.logger.Info("found existing saved index, loading from disk")
		payload, err := m.loadPayload()
		if err != nil {
			return nil, err
		}
		m.data = payload
		return m.data, nil
	}

	m.logger.Info("no existing index found, building a new one")
	payload, err := m.Build()
	if err != nil {
		return nil, err
	}
	m.data = payload
	return m.data, nil
}

// Rebuild runs a full rebuild. A dedicated mutex serializes rebuilds so
// at most one runs at a time; readers keep the previous snapshot until
// the new payload lands.
func (m *Manager) Rebuild() (*tree.IndexPayload, error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.GetOrCreate(true)
}

// Store exposes the node store for traversal and node lookups.
func (m *Manager) Store() *store.NodeStore {
	return m.store
}
