package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/http/response"
	"github.com/yungbote/docflow-backend/internal/pipeline"
	"github.com/yungbote/docflow-backend/internal/services"
)

type DocumentHandler struct {
	documents services.DocumentService
	driver    *pipeline.Driver
}

func NewDocumentHandler(documents services.DocumentService, driver *pipeline.Driver) *DocumentHandler {
	return &DocumentHandler{documents: documents, driver: driver}
}

type ingestRequest struct {
	DocumentID *uuid.UUID      `json:"document_id,omitempty"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// POST /api/documents
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	doc, reopened, err := h.documents.Ingest(c.Request.Context(), req.DocumentID, req.Content, req.Metadata)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	payload := gin.H{"document": doc, "reopened": reopened}
	if reopened || doc.Version > 1 {
		response.RespondOK(c, payload)
		return
	}
	response.RespondCreated(c, payload)
}

// GET /api/documents/:id/state
func (h *DocumentHandler) GetState(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	doc, err := h.documents.GetState(c.Request.Context(), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

type advanceRequest struct {
	ExpectedStage   types.Stage     `json:"expected_stage"`
	ExpectedVersion int             `json:"expected_version"`
	ToStage         types.Stage     `json:"to_stage"`
	AgentID         string          `json:"agent_id"`
	Message         string          `json:"message,omitempty"`
	ResultPayload   json.RawMessage `json:"result_payload,omitempty"`
}

// POST /api/documents/:id/advance
func (h *DocumentHandler) Advance(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	doc, err := h.documents.Advance(c.Request.Context(), services.AdvanceInput{
		DocumentID:      docID,
		ExpectedStage:   req.ExpectedStage,
		ExpectedVersion: req.ExpectedVersion,
		ToStage:         req.ToStage,
		AgentID:         req.AgentID,
		Message:         req.Message,
		ResultPayload:   req.ResultPayload,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// POST /api/documents/:id/retry
func (h *DocumentHandler) Retry(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	if h.driver == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "driver_unavailable", nil)
		return
	}
	if err := h.driver.Retry(c.Request.Context(), docID); err != nil {
		respondDomainError(c, err)
		return
	}
	doc, err := h.documents.GetState(c.Request.Context(), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// GET /api/documents/:id/transitions
func (h *DocumentHandler) ListTransitions(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	recs, err := h.documents.ListTransitions(c.Request.Context(), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"transitions": recs})
}
