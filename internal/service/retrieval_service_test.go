package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
)

func seedDirections(t *testing.T, store *memChunkStore) {
	t.Helper()
	diag := make([]float32, model.EmbeddingDimension)
	diag[0], diag[1] = 0.707, 0.707
	require.NoError(t, store.ReplaceByDocument(context.Background(), "doc", []*model.Chunk{
		{DocumentID: "doc", ChunkIndex: 0, ChunkText: "x-axis", Embedding: unitVector(0)},
		{DocumentID: "doc", ChunkIndex: 1, ChunkText: "y-axis", Embedding: unitVector(1)},
		{DocumentID: "doc", ChunkIndex: 2, ChunkText: "diagonal", Embedding: diag},
	}))
}

func TestRetrieveSimilarOrdersByCosineDistance(t *testing.T) {
	store := newMemChunkStore()
	seedDirections(t, store)
	svc := NewRetrievalService(store, nil, 0, 2)

	res, err := svc.RetrieveSimilar(context.Background(), unitVector(0), 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "x-axis", res[0].ChunkText)
	require.Equal(t, "diagonal", res[1].ChunkText)
	require.Equal(t, 2, store.lastK)
}

func TestEffectiveTopK(t *testing.T) {
	svc := NewRetrievalService(newMemChunkStore(), nil, 0, 5)
	require.Equal(t, 5, svc.EffectiveTopK(0))
	require.Equal(t, 5, svc.EffectiveTopK(-3))
	require.Equal(t, 1, svc.EffectiveTopK(1))
	require.Equal(t, 12, svc.EffectiveTopK(12))
	require.Equal(t, 5, NewRetrievalService(nil, nil, 0, 0).EffectiveTopK(0))
}

func TestRetrieveSimilarOverrideK(t *testing.T) {
	store := newMemChunkStore()
	seedDirections(t, store)
	svc := NewRetrievalService(store, nil, 0, 2)

	res, err := svc.RetrieveSimilar(context.Background(), unitVector(0), 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Equal(t, "y-axis", res[2].ChunkText)
}

func TestVectorLiteral(t *testing.T) {
	require.Equal(t, "[]", VectorLiteral(nil))
	require.Equal(t, "[1, 0, -0.5, 0.707]", VectorLiteral([]float32{1, 0, -0.5, 0.707}))
	require.Equal(t, "[1e-07]", VectorLiteral([]float32{1e-7}))
}

func TestSearchRanksResults(t *testing.T) {
	store := newMemChunkStore()
	seedDirections(t, store)
	e := &fakeEmbedder{model: "m", fn: func(string) ([]float32, error) { return unitVector(1), nil }}
	svc := NewRetrievalService(store, e, model.EmbeddingDimension, 2)

	res, err := svc.Search(context.Background(), "growth", 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, 1, res[0].Rank)
	require.Equal(t, "y-axis", res[0].Chunk.ChunkText)
	require.Equal(t, 2, res[1].Rank)
	require.Equal(t, "diagonal", res[1].Chunk.ChunkText)

	_, err = svc.Search(context.Background(), "  ", 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestSearchRejectsUnusableQueryVector(t *testing.T) {
	store := newMemChunkStore()
	seedDirections(t, store)
	e := &fakeEmbedder{model: "m", fn: func(string) ([]float32, error) { return []float32{}, nil }}
	svc := NewRetrievalService(store, e, model.EmbeddingDimension, 2)

	_, err := svc.Search(context.Background(), "growth", 0)
	require.ErrorIs(t, err, appErr.ErrProvider)
	require.Empty(t, store.lastLit)
}
