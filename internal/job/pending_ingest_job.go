package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/model"
)

const (
	defaultPendingBatch = 20
	retryBaseDelay      = 5 * time.Minute
	retryMaxDelay       = 6 * time.Hour
)

type pendingLister interface {
	ListPendingIngestion(ctx context.Context, limit int, skip []string) ([]*model.Document, error)
}

type documentIngester interface {
	Ingest(ctx context.Context, doc *model.Document) (int, error)
}

type retryState struct {
	attempts int
	retryAt  time.Time
}

// PendingIngestJob ingests documents that have content but no stored chunks.
// A document that fails, or ingests to zero chunks, is held back with an
// exponential delay so it cannot keep the batch window on itself.
type PendingIngestJob struct {
	docs   pendingLister
	ingest documentIngester
	batch  int
	now    func() time.Time

	mu      sync.Mutex
	backoff map[string]*retryState
}

func NewPendingIngestJob(docs pendingLister, ingest documentIngester, batch int) *PendingIngestJob {
	if batch <= 0 {
		batch = defaultPendingBatch
	}
	return &PendingIngestJob{
		docs:    docs,
		ingest:  ingest,
		batch:   batch,
		now:     time.Now,
		backoff: map[string]*retryState{},
	}
}

func (j *PendingIngestJob) Name() string {
	return "pending_ingest"
}

func (j *PendingIngestJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	docs, err := j.docs.ListPendingIngestion(ctx, j.batch, j.heldBack())
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	var errs []error
	for _, doc := range docs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		cnt, err := j.ingest.Ingest(ctx, doc)
		switch {
		case err != nil:
			j.holdBack(doc.ID)
			logger.Warn("pending ingestion failed", zap.String("doc_id", doc.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("ingest %s: %w", doc.ID, err))
		case cnt == 0:
			j.holdBack(doc.ID)
			logger.Debug("pending document produced no chunks", zap.String("doc_id", doc.ID))
		default:
			delete(j.backoff, doc.ID)
		}
	}
	logger.Info("pending ingestion pass done",
		zap.Int("documents", len(docs)),
		zap.Int("failed", len(errs)),
		zap.Int("held_back", len(j.backoff)),
	)
	return errors.Join(errs...)
}

// heldBack returns the ids still inside their retry delay and forgets entries
// idle for longer than the maximum delay.
func (j *PendingIngestJob) heldBack() []string {
	now := j.now()
	ids := make([]string, 0, len(j.backoff))
	for id, st := range j.backoff {
		if now.Sub(st.retryAt) > retryMaxDelay {
			delete(j.backoff, id)
			continue
		}
		if now.Before(st.retryAt) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (j *PendingIngestJob) holdBack(docID string) {
	st, ok := j.backoff[docID]
	if !ok {
		st = &retryState{}
		j.backoff[docID] = st
	}
	st.attempts++
	delay := retryBaseDelay << (st.attempts - 1)
	if st.attempts > 10 || delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	st.retryAt = j.now().Add(delay)
}
