package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/aimarket/internal/ai"
	"github.com/xxxsen/aimarket/internal/handler"
	"github.com/xxxsen/aimarket/internal/middleware"
	"github.com/xxxsen/aimarket/internal/model"
	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
	"github.com/xxxsen/aimarket/internal/service"
)

type memStore struct {
	mu     sync.Mutex
	docs   map[string]*model.Document
	chunks map[string][]*model.Chunk
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*model.Document{}, chunks: map[string][]*model.Chunk{}}
}

func (s *memStore) Create(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *memStore) GetByID(_ context.Context, docID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (s *memStore) List(_ context.Context, _, _ uint) ([]*model.DocumentBrief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*model.DocumentBrief, 0, len(s.docs))
	for _, d := range s.docs {
		res = append(res, &model.DocumentBrief{ID: d.ID, Title: d.Title, Ctime: d.Ctime})
	}
	return res, nil
}

func (s *memStore) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.docs, docID)
	delete(s.chunks, docID)
	return nil
}

func (s *memStore) ReplaceByDocument(_ context.Context, docID string, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[docID] = chunks
	return nil
}

func (s *memStore) ListByDocument(_ context.Context, docID string) ([]*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[docID], nil
}

// FindNearest ignores the query vector and returns chunks in insertion order.
func (s *memStore) FindNearest(_ context.Context, _ string, limit int) ([]*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*model.Chunk
	for _, list := range s.chunks {
		res = append(res, list...)
	}
	if limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	v := make([]float32, model.EmbeddingDimension)
	v[0] = 1
	return v, nil
}

func (stubEmbedder) ModelName() string { return "text-embedding-3-small" }

type stubGenerator struct {
	content string
	err     error
}

func (g *stubGenerator) Generate(context.Context, string) (*ai.Generation, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &ai.Generation{Content: g.content, ModelUsed: "gpt-4o", TokensUsed: 150}, nil
}

type testEnv struct {
	router http.Handler
	store  *memStore
	gen    *stubGenerator
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	gen := &stubGenerator{content: `{"summary":"Growth of 20% detected.","riskFactors":["Economic slowdown"],"confidenceScore":0.95}`}
	embedder := stubEmbedder{}

	ingest := service.NewIngestService(store, store, ai.NewChunker(ai.DefaultMaxChunkLength), embedder, model.EmbeddingDimension, 2)
	retrieval := service.NewRetrievalService(store, embedder, model.EmbeddingDimension, 5)
	analysis := service.NewAnalysisService(embedder, retrieval, ai.NewPromptBuilder(), gen)
	documents := service.NewDocumentService(store, store, nil, ingest, false)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(documents, ingest, 1024),
		Analysis:  handler.NewAnalysisHandler(analysis, retrieval),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, store: store, gen: gen}
}

type apiResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) apiResult {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) apiResult {
	t.Helper()
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}
