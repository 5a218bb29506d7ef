package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/aimarket/internal/model"
)

type chunkRow struct {
	ID             int64           `db:"id"`
	DocumentID     string          `db:"document_id"`
	ChunkIndex     int             `db:"chunk_index"`
	ChunkText      string          `db:"chunk_text"`
	Embedding      pgvector.Vector `db:"embedding"`
	EmbeddingModel string          `db:"embedding_model"`
	Ctime          int64           `db:"ctime"`
}

func (r *chunkRow) toModel() *model.Chunk {
	return &model.Chunk{
		ID:             r.ID,
		DocumentID:     r.DocumentID,
		ChunkIndex:     r.ChunkIndex,
		ChunkText:      r.ChunkText,
		Embedding:      r.Embedding.Slice(),
		EmbeddingModel: r.EmbeddingModel,
		Ctime:          r.Ctime,
	}
}

type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: sqlx.NewDb(db, "postgres")}
}

// ReplaceByDocument swaps every stored chunk of docID for chunks inside a single
// transaction. Assigned ids are written back into chunks.
func (r *ChunkRepo) ReplaceByDocument(ctx context.Context, docID string, chunks []*model.Chunk) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM document_chunk WHERE document_id = $1`, docID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO document_chunk (document_id, chunk_index, chunk_text, embedding, embedding_model, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, c := range chunks {
		row := tx.QueryRowxContext(ctx, insert,
			docID,
			c.ChunkIndex,
			c.ChunkText,
			pgvector.NewVector(c.Embedding),
			c.EmbeddingModel,
			c.Ctime,
		)
		if err = row.Scan(&c.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindNearest orders chunks by cosine distance to the vector literal, closest first.
func (r *ChunkRepo) FindNearest(ctx context.Context, vectorLiteral string, limit int) ([]*model.Chunk, error) {
	const query = `
		SELECT id, document_id, chunk_index, chunk_text, embedding, embedding_model, ctime
		FROM document_chunk
		ORDER BY embedding <=> CAST($1 AS vector) ASC
		LIMIT $2
	`
	var rows []chunkRow
	if err := r.db.SelectContext(ctx, &rows, query, vectorLiteral, limit); err != nil {
		return nil, err
	}
	return toChunks(rows), nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]*model.Chunk, error) {
	const query = `
		SELECT id, document_id, chunk_index, chunk_text, embedding, embedding_model, ctime
		FROM document_chunk
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	var rows []chunkRow
	if err := r.db.SelectContext(ctx, &rows, query, docID); err != nil {
		return nil, err
	}
	return toChunks(rows), nil
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, docID string) (int, error) {
	var cnt int
	if err := r.db.GetContext(ctx, &cnt, `SELECT COUNT(1) FROM document_chunk WHERE document_id = $1`, docID); err != nil {
		return 0, err
	}
	return cnt, nil
}

func toChunks(rows []chunkRow) []*model.Chunk {
	res := make([]*model.Chunk, 0, len(rows))
	for i := range rows {
		res = append(res, rows[i].toModel())
	}
	return res
}
