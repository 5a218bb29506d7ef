package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
	"github.com/xxxsen/aimarket/internal/pkg/dbutil"
)

var documentColumns = []string{"id", "title", "content", "ctime"}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":      doc.ID,
		"title":   doc.Title,
		"content": doc.Content,
		"ctime":   doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": docID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var doc model.Document
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, offset, limit uint) ([]*model.DocumentBrief, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id", "title", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]*model.DocumentBrief, 0, limit)
	for rows.Next() {
		item := &model.DocumentBrief{}
		if err := rows.Scan(&item.ID, &item.Title, &item.Ctime); err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	where := map[string]interface{}{
		"id": docID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListPendingIngestion returns the oldest documents that contain a non space
// character and have no stored chunk. Ids in skip are left out.
func (r *DocumentRepo) ListPendingIngestion(ctx context.Context, limit int, skip []string) ([]*model.Document, error) {
	const query = `
		SELECT d.id, d.title, d.content, d.ctime
		FROM documents d
		WHERE d.content ~ '\S'
		  AND NOT (d.id = ANY($2))
		  AND NOT EXISTS (SELECT 1 FROM document_chunk c WHERE c.document_id = d.id)
		ORDER BY d.ctime ASC
		LIMIT $1
	`
	if skip == nil {
		skip = []string{}
	}
	rows, err := r.db.QueryContext(ctx, query, limit, pq.Array(skip))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Ctime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
