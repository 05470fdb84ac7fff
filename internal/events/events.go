// Package events defines the stage-change notifications the pipeline
// emits and the publisher seam the driver and services write through.
package events

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/docflow-backend/internal/domain"
)

// StageEvent describes one committed document transition.
type StageEvent struct {
	DocumentID uuid.UUID   `json:"document_id"`
	FromStage  types.Stage `json:"from_stage"`
	ToStage    types.Stage `json:"to_stage"`
	Version    int         `json:"version"`
	AgentID    string      `json:"agent_id,omitempty"`
	Message    string      `json:"message,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher delivers stage events to interested listeners. Publishing is
// best effort; a failed delivery never rolls back the transition that
// produced it.
type Publisher interface {
	Publish(ev StageEvent)
}

// Nop drops every event. Used when no event backend is configured.
type Nop struct{}

func (Nop) Publish(StageEvent) {}
