package service

import (
	"context"

	"github.com/xxxsen/aimarket/internal/model"
)

// Narrow views over the repo layer so services can run against fakes.

type IDocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, docID string) (*model.Document, error)
	List(ctx context.Context, offset, limit uint) ([]*model.DocumentBrief, error)
	Delete(ctx context.Context, docID string) error
}

type IChunkStore interface {
	ReplaceByDocument(ctx context.Context, docID string, chunks []*model.Chunk) error
	ListByDocument(ctx context.Context, docID string) ([]*model.Chunk, error)
}

type IChunkSearcher interface {
	FindNearest(ctx context.Context, vectorLiteral string, limit int) ([]*model.Chunk, error)
}
