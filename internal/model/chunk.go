package model

// EmbeddingDimension is the fixed vector length of every stored chunk.
const EmbeddingDimension = 1536

type Chunk struct {
	ID             int64     `json:"id"`
	DocumentID     string    `json:"document_id"`
	ChunkIndex     int       `json:"chunk_index"`
	ChunkText      string    `json:"chunk_text"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model"`
	Ctime          int64     `json:"ctime"`
}

// RetrievedChunk is a chunk with its 1-based position in a similarity result set.
type RetrievedChunk struct {
	Rank  int    `json:"rank"`
	Chunk *Chunk `json:"chunk"`
}
