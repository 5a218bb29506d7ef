package embedcache

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/model"
	"github.com/xxxsen/aimarket/internal/pkg/timeutil"
)

// IStore is the persistence behind the db layer, see repo.EmbeddingCacheRepo.
type IStore interface {
	Get(ctx context.Context, modelName, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, dimension int, store IStore) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, dimension: dimension, store: store}
}

type dbEmbedder struct {
	next      ai.IEmbedder
	dimension int
	store     IStore
}

func (d *dbEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := buildCacheKey(d.next.ModelName(), text)
	values, ok, err := d.store.Get(ctx, key.Model, key.Hash)
	if err != nil {
		return nil, err
	}
	if ok && cacheable(values, d.dimension) {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("model", key.Model))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if !cacheable(res, d.dimension) {
		logutil.GetLogger(ctx).Warn("skip caching embedding", zap.Int("dim", len(res)), zap.Int("want", d.dimension))
		return res, nil
	}
	if err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.Model,
		ContentHash: key.Hash,
		Embedding:   res,
		Ctime:       timeutil.NowUnix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
