package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/ai"
)

// WrapLruCacheToEmbedder keeps recent embeddings in memory. A non positive
// size or ttl disables the layer and returns e unchanged. Only vectors of the
// given dimension are kept.
func WrapLruCacheToEmbedder(e ai.IEmbedder, dimension, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:      e,
		dimension: dimension,
		cache:     expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next      ai.IEmbedder
	dimension int
	cache     *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := buildCacheKey(l.next.ModelName(), text).String()
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("text_len", len(text)))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if !cacheable(res, l.dimension) {
		logutil.GetLogger(ctx).Warn("skip caching embedding", zap.Int("dim", len(res)), zap.Int("want", l.dimension))
		return res, nil
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}
