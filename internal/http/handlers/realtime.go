package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/docflow-backend/internal/http/response"
	"github.com/yungbote/docflow-backend/internal/sse"
)

type RealtimeHandler struct {
	hub *sse.Hub
}

func NewRealtimeHandler(hub *sse.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// GET /api/events/stream?document_id=...
//
// Without a document_id the stream carries every stage event.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "events_unavailable", nil)
		return
	}
	client := h.hub.NewClient()
	defer h.hub.CloseClient(client)

	if raw := c.Query("document_id"); raw != "" {
		docID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
			return
		}
		h.hub.Subscribe(client, sse.DocumentChannel(docID))
	} else {
		h.hub.Subscribe(client, sse.ChannelAll)
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
