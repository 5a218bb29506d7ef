package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
)

type AnalysisService struct {
	embedder  ai.IEmbedder
	retrieval *RetrievalService
	prompts   *ai.PromptBuilder
	generator ai.IGenerator
}

func NewAnalysisService(embedder ai.IEmbedder, retrieval *RetrievalService, prompts *ai.PromptBuilder, generator ai.IGenerator) *AnalysisService {
	return &AnalysisService{embedder: embedder, retrieval: retrieval, prompts: prompts, generator: generator}
}

// Analyze answers query from the most similar stored chunks. The first failing
// step aborts the call; nothing is retried or cached.
func (s *AnalysisService) Analyze(ctx context.Context, query string, topK int) (*model.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx)
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return nil, err
	}
	if err := s.retrieval.checkQueryVector(vec); err != nil {
		logger.Error("query embedding unusable", zap.Error(err))
		return nil, err
	}
	chunks, err := s.retrieval.RetrieveSimilar(ctx, vec, topK)
	if err != nil {
		logger.Error("retrieve context failed", zap.Error(err))
		return nil, err
	}
	prompt := s.prompts.Build(query, chunks)
	gen, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("generate answer failed", zap.Error(err))
		return nil, err
	}
	parsed, err := ai.ParseAnswer(gen.Content)
	if err != nil {
		logger.Error("model answer rejected", zap.String("model", gen.ModelUsed), zap.Error(err))
		return nil, err
	}
	logger.Info("analysis completed",
		zap.Int("context_chunks", len(chunks)),
		zap.String("model", gen.ModelUsed),
		zap.Int("tokens", gen.TokensUsed),
	)
	return &model.Answer{
		Summary:         parsed.Summary,
		RiskFactors:     parsed.RiskFactors,
		ConfidenceScore: parsed.ConfidenceScore,
		ModelUsed:       gen.ModelUsed,
		TokensUsed:      gen.TokensUsed,
	}, nil
}
