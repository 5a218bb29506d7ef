package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
)

type RetrievalService struct {
	searcher    IChunkSearcher
	embedder    ai.IEmbedder
	dimension   int
	defaultTopK int
}

func NewRetrievalService(searcher IChunkSearcher, embedder ai.IEmbedder, dimension, defaultTopK int) *RetrievalService {
	if defaultTopK < 1 {
		defaultTopK = 5
	}
	if dimension <= 0 {
		dimension = model.EmbeddingDimension
	}
	return &RetrievalService{searcher: searcher, embedder: embedder, dimension: dimension, defaultTopK: defaultTopK}
}

func (s *RetrievalService) EffectiveTopK(override int) int {
	if override > 0 {
		return override
	}
	return s.defaultTopK
}

// RetrieveSimilar returns up to K chunks closest to vec by cosine distance,
// in the order the store ranked them.
func (s *RetrievalService) RetrieveSimilar(ctx context.Context, vec []float32, topK int) ([]*model.Chunk, error) {
	k := s.EffectiveTopK(topK)
	chunks, err := s.searcher.FindNearest(ctx, VectorLiteral(vec), k)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("similar chunks retrieved", zap.Int("top_k", k), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// Search embeds query and returns the ranked chunks without generation.
func (s *RetrievalService) Search(ctx context.Context, query string, topK int) ([]*model.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, appErr.ErrInvalid
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.checkQueryVector(vec); err != nil {
		return nil, err
	}
	chunks, err := s.RetrieveSimilar(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	res := make([]*model.RetrievedChunk, 0, len(chunks))
	for i, c := range chunks {
		res = append(res, &model.RetrievedChunk{Rank: i + 1, Chunk: c})
	}
	return res, nil
}

// checkQueryVector rejects a query embedding the store cannot compare against.
// The provider produced it, so the failure is reported as a provider error.
func (s *RetrievalService) checkQueryVector(vec []float32) error {
	if len(vec) != s.dimension {
		return fmt.Errorf("%w: %w: query got %d, want %d", appErr.ErrProvider, appErr.ErrEmbeddingDimensionMismatch, len(vec), s.dimension)
	}
	return nil
}

// VectorLiteral renders vec in the pgvector text form "[v0, v1, ...]".
func VectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.Grow(len(vec)*12 + 2)
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
