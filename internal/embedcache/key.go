package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type cacheKey struct {
	Model string
	Hash  string
}

func (k cacheKey) String() string {
	return "embed:" + k.Model + ":" + k.Hash
}

func buildCacheKey(modelName, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return cacheKey{Model: modelName, Hash: hex.EncodeToString(sum[:])}
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

// cacheable reports whether values is worth replaying. A non positive
// dimension accepts any non empty vector.
func cacheable(values []float32, dimension int) bool {
	if dimension <= 0 {
		return len(values) > 0
	}
	return len(values) == dimension
}
