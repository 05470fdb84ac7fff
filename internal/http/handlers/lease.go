package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	"github.com/yungbote/docflow-backend/internal/http/response"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
)

type LeaseHandler struct {
	leases     pipelinerepo.LeaseRepo
	defaultTTL time.Duration
}

func NewLeaseHandler(leases pipelinerepo.LeaseRepo, defaultTTL time.Duration) *LeaseHandler {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &LeaseHandler{leases: leases, defaultTTL: defaultTTL}
}

type leaseRequest struct {
	Holder     string `json:"holder"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

func (r leaseRequest) ttl(def time.Duration) time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return def
}

// POST /api/documents/:id/lease
func (h *LeaseHandler) Acquire(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	var req leaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lease, err := h.leases.Acquire(dbctx.New(c.Request.Context()), docID, req.Holder, req.ttl(h.defaultTTL))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"lease": lease})
}

// POST /api/leases/:id/renew
func (h *LeaseHandler) Renew(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lease_id", err)
		return
	}
	var req leaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lease, err := h.leases.Renew(dbctx.New(c.Request.Context()), leaseID, req.Holder, req.ttl(h.defaultTTL))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lease": lease})
}

// DELETE /api/leases/:id
func (h *LeaseHandler) Release(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lease_id", err)
		return
	}
	holder := c.Query("holder")
	if err := h.leases.Release(dbctx.New(c.Request.Context()), leaseID, holder); err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"released": true})
}

// GET /api/documents/:id/lease
func (h *LeaseHandler) GetByDocument(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	lease, err := h.leases.GetByDocument(dbctx.New(c.Request.Context()), docID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lease": lease})
}
