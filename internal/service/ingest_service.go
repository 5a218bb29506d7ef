package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
	"github.com/xxxsen/aimarket/internal/pkg/timeutil"
)

type IngestService struct {
	docs      IDocumentStore
	chunks    IChunkStore
	chunker   *ai.Chunker
	embedder  ai.IEmbedder
	dimension int
	workers   int
}

func NewIngestService(docs IDocumentStore, chunks IChunkStore, chunker *ai.Chunker, embedder ai.IEmbedder, dimension, workers int) *IngestService {
	if workers < 1 {
		workers = 1
	}
	if dimension <= 0 {
		dimension = model.EmbeddingDimension
	}
	return &IngestService{
		docs:      docs,
		chunks:    chunks,
		chunker:   chunker,
		embedder:  embedder,
		dimension: dimension,
		workers:   workers,
	}
}

func (s *IngestService) IngestByID(ctx context.Context, docID string) (int, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return 0, err
	}
	return s.Ingest(ctx, doc)
}

// Ingest chunks and embeds doc, then replaces its stored chunk set. Nothing is
// written unless every chunk embedded with the expected dimension. A blank
// body is skipped and reports zero chunks.
func (s *IngestService) Ingest(ctx context.Context, doc *model.Document) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	if strings.TrimSpace(doc.Content) == "" {
		logger.Debug("skip ingestion for blank document")
		return 0, nil
	}
	texts := s.chunker.Chunk(ctx, doc.Content)
	if len(texts) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for idx, text := range texts {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", idx, err)
			}
			if len(vec) != s.dimension {
				return fmt.Errorf("%w: chunk %d got %d, want %d", appErr.ErrEmbeddingDimensionMismatch, idx, len(vec), s.dimension)
			}
			vectors[idx] = vec
			logger.Debug("chunk embedded", zap.Int("chunk_index", idx), zap.Int("text_len", len(text)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("ingestion aborted", zap.Int("chunks", len(texts)), zap.Error(err))
		return 0, err
	}

	now := timeutil.NowUnix()
	modelName := s.embedder.ModelName()
	chunks := make([]*model.Chunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, &model.Chunk{
			DocumentID:     doc.ID,
			ChunkIndex:     idx,
			ChunkText:      text,
			Embedding:      vectors[idx],
			EmbeddingModel: modelName,
			Ctime:          now,
		})
	}
	if err := s.chunks.ReplaceByDocument(ctx, doc.ID, chunks); err != nil {
		logger.Error("persist chunks failed", zap.Error(err))
		return 0, err
	}
	logger.Info("document ingested", zap.Int("chunks", len(chunks)), zap.String("model", modelName))
	return len(chunks), nil
}
