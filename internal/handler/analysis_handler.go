package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/aimarket/internal/model"
	"github.com/xxxsen/aimarket/internal/pkg/errcode"
	"github.com/xxxsen/aimarket/internal/pkg/response"
	"github.com/xxxsen/aimarket/internal/service"
)

type AnalysisHandler struct {
	analysis  *service.AnalysisService
	retrieval *service.RetrievalService
}

func NewAnalysisHandler(analysis *service.AnalysisService, retrieval *service.RetrievalService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, retrieval: retrieval}
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.analysis.Analyze(c.Request.Context(), req.Query, req.EffectiveTopK())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func (h *AnalysisHandler) Search(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.retrieval.Search(c.Request.Context(), req.Query, req.EffectiveTopK())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
