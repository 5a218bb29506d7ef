package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/aimarket/internal/pkg/errcode"
	"github.com/xxxsen/aimarket/internal/pkg/response"
	"github.com/xxxsen/aimarket/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	ingest         *service.IngestService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest, maxUploadBytes: maxUploadBytes}
}

type documentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.documents.Create(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), queryUint(c, "offset"), queryUint(c, "limit"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	docID := c.Param("id")
	cnt, err := h.ingest.IngestByID(c.Request.Context(), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ingestResponse{DocumentID: docID, Chunks: cnt})
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.documents.Chunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunks)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required, max "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large, max "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	res, err := h.documents.Upload(c.Request.Context(), file.Filename, c.PostForm("title"), opened, file.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
