package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/filestore"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
)

type memDocStore struct {
	mu        sync.Mutex
	docs      map[string]*model.Document
	createErr error
}

func newMemDocStore(docs ...*model.Document) *memDocStore {
	s := &memDocStore{docs: map[string]*model.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *memDocStore) Create(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *memDocStore) GetByID(_ context.Context, docID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (s *memDocStore) List(_ context.Context, offset, limit uint) ([]*model.DocumentBrief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*model.DocumentBrief, 0, len(s.docs))
	for _, d := range s.docs {
		res = append(res, &model.DocumentBrief{ID: d.ID, Title: d.Title, Ctime: d.Ctime})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if int(offset) >= len(res) {
		return []*model.DocumentBrief{}, nil
	}
	res = res[offset:]
	if int(limit) < len(res) {
		res = res[:limit]
	}
	return res, nil
}

func (s *memDocStore) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.docs, docID)
	return nil
}

// memChunkStore doubles as IChunkStore and IChunkSearcher. FindNearest parses
// the literal back and ranks by cosine distance like pgvector's <=>.
type memChunkStore struct {
	mu       sync.Mutex
	chunks   map[string][]*model.Chunk
	replaces int
	lastK    int
	lastLit  string
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{chunks: map[string][]*model.Chunk{}}
}

func (s *memChunkStore) ReplaceByDocument(_ context.Context, docID string, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces++
	s.chunks[docID] = append([]*model.Chunk(nil), chunks...)
	return nil
}

func (s *memChunkStore) ListByDocument(_ context.Context, docID string) ([]*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Chunk{}, s.chunks[docID]...), nil
}

func (s *memChunkStore) FindNearest(_ context.Context, vectorLiteral string, limit int) ([]*model.Chunk, error) {
	query, err := parseLiteral(vectorLiteral)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastK = limit
	s.lastLit = vectorLiteral
	var all []*model.Chunk
	for _, list := range s.chunks {
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return cosineDistance(query, all[i].Embedding) < cosineDistance(query, all[j].Embedding)
	})
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *memChunkStore) count(docID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks[docID])
}

func parseLiteral(lit string) ([]float32, error) {
	if !strings.HasPrefix(lit, "[") || !strings.HasSuffix(lit, "]") {
		return nil, fmt.Errorf("bad literal %q", lit)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(lit, "["), "]")
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ", ")
	res := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, err
		}
		res = append(res, float32(v))
	}
	return res, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

type fakeEmbedder struct {
	mu    sync.Mutex
	model string
	fn    func(text string) ([]float32, error)
	calls []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()
	return e.fn(text)
}

func (e *fakeEmbedder) ModelName() string { return e.model }

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeGenerator struct {
	gen     *ai.Generation
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (*ai.Generation, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return nil, g.err
	}
	res := *g.gen
	return &res, nil
}

type memFileStore struct {
	files   map[string]string
	saveErr error
}

func (m *memFileStore) Type() string { return "mem" }

func (m *memFileStore) Save(_ context.Context, key string, r filestore.ReadSeekCloser, _ int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.files[key] = string(data)
	return nil
}

func unitVector(hot int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[hot] = 1
	return v
}

// lengthEmbedder returns full dimension vectors whose first component is the
// rune count of the text, so each chunk's vector can be traced back to it.
func lengthEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "text-embedding-3-small", fn: func(text string) ([]float32, error) {
		v := make([]float32, model.EmbeddingDimension)
		v[0] = float32(len([]rune(text)))
		v[1] = 1
		return v, nil
	}}
}

var errBoom = errors.New("boom")

func newDefaultChunker() *ai.Chunker {
	return ai.NewChunker(ai.DefaultMaxChunkLength)
}
