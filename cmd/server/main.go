package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgallion1/docqa/internal/api"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/events"
	"github.com/dgallion1/docqa/internal/indexer"
	"github.com/dgallion1/docqa/internal/jobs"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/manager"
	"github.com/dgallion1/docqa/internal/metrics"
	"github.com/dgallion1/docqa/internal/query"
	"github.com/dgallion1/docqa/internal/store"
	"github.com/dgallion1/docqa/internal/structure"
	"github.com/dgallion1/docqa/internal/traverse"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(0)
	bus := events.NewBus(cfg.EventBufferSize)

	st, err := store.NewNodeStore(filepath.Join(cfg.IndexDir, "hierarchical"), cfg.NodeCacheSize, collector)
	if err != nil {
		log.Error("node store init failed", "error", err)
		os.Exit(1)
	}

	idx := indexer.NewBalancedIndexer(st, cfg.ChunkSizeWords, cfg.MaxChildrenPerNode, cfg.MaxDepth)
	mgr, err := manager.New(cfg.DocsDir, cfg.IndexDir, cfg.ModelName, st, idx, &structure.OutlineBuilder{}, log)
	if err != nil {
		log.Error("index manager init failed", "error", err)
		os.Exit(1)
	}

	completer, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ModelName)
	if err != nil {
		log.Error("llm client init failed", "error", err)
		os.Exit(1)
	}

	trav := traverse.NewEngine(st, bus, collector)
	engine := query.NewEngine(cfg.ModelName, completer, mgr, trav, log, query.Options{
		CacheSize:    cfg.QueryCacheSize,
		TopK:         cfg.ContextTopK,
		TopKPerLevel: cfg.TopKPerLevel,
	})

	// Warm the index before serving so first queries do not pay the
	// build cost.
	log.Info("loading index into memory")
	if _, err := mgr.GetOrCreate(false); err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			log.Warn("no documents to index yet", "docs_dir", cfg.DocsDir, "error", err)
		} else {
			log.Error("index warm-up failed", "error", err)
			os.Exit(1)
		}
	}

	jobStore := jobs.NewStore(cfg.JobTTL)
	stopCleanup := make(chan struct{})
	jobStore.StartCleanupLoop(10*time.Minute, stopCleanup)

	srv := api.NewServer(engine, mgr, jobStore, bus, collector, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		close(stopCleanup)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docqa", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
