package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/config"
	"github.com/xxxsen/aimarket/internal/db"
	"github.com/xxxsen/aimarket/internal/embedcache"
	"github.com/xxxsen/aimarket/internal/filestore"
	"github.com/xxxsen/aimarket/internal/repo"
	"github.com/xxxsen/aimarket/internal/service"
)

// app holds the wired stack shared by every subcommand.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	docRepo   *repo.DocumentRepo
	chunkRepo *repo.ChunkRepo
	cacheRepo *repo.EmbeddingCacheRepo
	ingest    *service.IngestService
	retrieval *service.RetrievalService
	analysis  *service.AnalysisService
	documents *service.DocumentService
}

func providerArgs(data interface{}) interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}

func newApp(cfg *config.Config, withFileStore bool) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	embedProvider, err := ai.NewProvider(cfg.Embedding.Provider, providerArgs(cfg.Embedding.Data))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	genProvider, err := ai.NewProvider(cfg.Generation.Provider, providerArgs(cfg.Generation.Data))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init generation provider: %w", err)
	}

	a := &app{
		cfg:       cfg,
		db:        conn,
		docRepo:   repo.NewDocumentRepo(conn),
		chunkRepo: repo.NewChunkRepo(conn),
		cacheRepo: repo.NewEmbeddingCacheRepo(conn),
	}

	queryEmbedder := ai.NewEmbedder(embedProvider, cfg.Embedding.Model, cfg.Embedding.Dimension)
	ingestEmbedder := queryEmbedder
	if cfg.EmbedCache.DBEnabled {
		ingestEmbedder = embedcache.WrapDBCacheToEmbedder(ingestEmbedder, cfg.Embedding.Dimension, a.cacheRepo)
	}
	ingestEmbedder = embedcache.WrapLruCacheToEmbedder(ingestEmbedder, cfg.Embedding.Dimension,
		cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second)

	generator := ai.NewGenerator(genProvider, cfg.Generation.Model)
	chunker := ai.NewChunker(cfg.Chunker.MaxChunkLength)

	a.ingest = service.NewIngestService(a.docRepo, a.chunkRepo, chunker, ingestEmbedder, cfg.Embedding.Dimension, cfg.Ingest.Workers)
	a.retrieval = service.NewRetrievalService(a.chunkRepo, queryEmbedder, cfg.Embedding.Dimension, cfg.Retrieval.DefaultTopK)
	a.analysis = service.NewAnalysisService(queryEmbedder, a.retrieval, ai.NewPromptBuilder(), generator)

	var store filestore.Store
	if withFileStore {
		store, err = filestore.New(cfg.FileStore)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("init file store: %w", err)
		}
	}
	a.documents = service.NewDocumentService(a.docRepo, a.chunkRepo, store, a.ingest, cfg.Ingest.OnCreate)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
