package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/filestore"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
	"github.com/xxxsen/aimarket/internal/pkg/mdtext"
	"github.com/xxxsen/aimarket/internal/pkg/timeutil"
)

const (
	maxTitleLength  = 256
	defaultPageSize = 20
	maxPageSize     = 100
)

type DocumentService struct {
	docs     IDocumentStore
	chunks   IChunkStore
	files    filestore.Store
	ingest   *IngestService
	onCreate bool
}

// NewDocumentService wires document plumbing. files may be nil, in which case
// uploads are indexed without keeping the raw file. When onCreate is set every
// created document is ingested immediately.
func NewDocumentService(docs IDocumentStore, chunks IChunkStore, files filestore.Store, ingest *IngestService, onCreate bool) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks, files: files, ingest: ingest, onCreate: onCreate}
}

type CreateResult struct {
	Document    *model.Document `json:"document"`
	Chunks      int             `json:"chunks"`
	IngestError string          `json:"ingest_error,omitempty"`
}

func (s *DocumentService) Create(ctx context.Context, title, content string) (*CreateResult, error) {
	doc, err := newDocument(title, content)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, doc)
}

func newDocument(title, content string) (*model.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", appErr.ErrInvalid, maxTitleLength)
	}
	return &model.Document{
		ID:      newID(),
		Title:   title,
		Content: content,
		Ctime:   timeutil.NowUnix(),
	}, nil
}

func (s *DocumentService) create(ctx context.Context, doc *model.Document) (*CreateResult, error) {
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	return s.ingestCreated(ctx, doc), nil
}

// ingestCreated runs the on-create ingestion. A failure leaves the document
// stored without chunks for the pending ingestion job and is reported in the
// result rather than as an error.
func (s *DocumentService) ingestCreated(ctx context.Context, doc *model.Document) *CreateResult {
	res := &CreateResult{Document: doc}
	if !s.onCreate || s.ingest == nil {
		return res
	}
	cnt, err := s.ingest.Ingest(ctx, doc)
	if err != nil {
		logutil.GetLogger(ctx).Warn("ingest on create failed", zap.String("doc_id", doc.ID), zap.Error(err))
		res.IngestError = err.Error()
		return res
	}
	res.Chunks = cnt
	return res
}

func (s *DocumentService) Get(ctx context.Context, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, docID)
}

func (s *DocumentService) List(ctx context.Context, offset, limit uint) ([]*model.DocumentBrief, error) {
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.docs.List(ctx, offset, limit)
}

func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	if err := s.docs.Delete(ctx, docID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("doc_id", docID))
	return nil
}

// Chunks lists the stored chunks of an existing document in index order.
func (s *DocumentService) Chunks(ctx context.Context, docID string) ([]*model.Chunk, error) {
	if _, err := s.docs.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, docID)
}

// Upload creates a document from the file's text and stores the raw file
// under the document id. Markdown files are flattened to plain text first. A
// failed store drops the document again so no half upload remains.
func (s *DocumentService) Upload(ctx context.Context, filename, title string, file filestore.ReadSeekCloser, size int64) (*CreateResult, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: file is not utf-8 text", appErr.ErrInvalid)
	}
	content := string(raw)
	if mdtext.IsMarkdownFile(filename) {
		content = mdtext.ToText(raw)
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	doc, err := newDocument(title, content)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if s.files != nil {
		key := doc.ID + strings.ToLower(filepath.Ext(filename))
		if err := s.files.Save(ctx, key, file, size); err != nil {
			logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
			logger.Error("save raw upload failed", zap.Error(err))
			if derr := s.docs.Delete(ctx, doc.ID); derr != nil {
				logger.Error("drop document after failed upload", zap.Error(derr))
			}
			return nil, fmt.Errorf("%w: %w", appErr.ErrUploadFailed, err)
		}
	}
	return s.ingestCreated(ctx, doc), nil
}
