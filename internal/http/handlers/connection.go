package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/docflow-backend/internal/http/response"
	"github.com/yungbote/docflow-backend/internal/services"
	"github.com/yungbote/docflow-backend/internal/vector"
)

var errQueryShape = errors.New("provide exactly one of vector or document_id")

type ConnectionHandler struct {
	connections services.ConnectionService
}

func NewConnectionHandler(connections services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

type similarityRequest struct {
	// Exactly one of Vector or DocumentID supplies the query.
	Vector     []float32  `json:"vector,omitempty"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Threshold  *float64   `json:"threshold,omitempty"`
	MaxResults int        `json:"max_results,omitempty"`
}

// POST /api/similarity/search
func (h *ConnectionHandler) Search(c *gin.Context) {
	var req similarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if (len(req.Vector) == 0) == (req.DocumentID == nil) {
		response.RespondError(c, http.StatusBadRequest, "invalid_query",
			errQueryShape)
		return
	}
	threshold := 0.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	ctx := c.Request.Context()
	var (
		matches []vector.Match
		err     error
	)
	if len(req.Vector) > 0 {
		matches, err = h.connections.SearchByVector(ctx, req.Vector, threshold, maxResults)
	} else {
		matches, err = h.connections.FindSimilar(ctx, *req.DocumentID, threshold, maxResults)
	}
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"matches": matches})
}

// POST /api/documents/:id/connections/propose
func (h *ConnectionHandler) Propose(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	entries, err := h.connections.ProposeConnections(c.Request.Context(), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"connections": entries})
}

// GET /api/connections/map
func (h *ConnectionHandler) Map(c *gin.Context) {
	docMap, err := h.connections.MapDocuments(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, docMap)
}

// GET /api/documents/:id/connections
func (h *ConnectionHandler) List(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	entries, err := h.connections.ListConnections(c.Request.Context(), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"connections": entries})
}
