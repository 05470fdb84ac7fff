package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// TransitionRecord is an immutable fact appended on every committed stage
// change. Version is the document version the transition produced, so
// records for one document are totally ordered by it.
type TransitionRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	FromStage  Stage     `gorm:"column:from_stage;not null" json:"from_stage"`
	ToStage    Stage     `gorm:"column:to_stage;not null" json:"to_stage"`
	Version    int       `gorm:"column:version;not null" json:"version"`
	AgentID    string    `gorm:"column:agent_id;not null" json:"agent_id"`
	Message    string    `gorm:"column:message" json:"message,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (TransitionRecord) TableName() string { return "transition_record" }
