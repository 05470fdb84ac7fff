package vectors

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConnectionEntry is a discovered, scored relationship between two
// documents. Entries are owned by the source document; a bidirectional
// entry implies the mirror edge without storing it.
type ConnectionEntry struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceDocumentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_document_id"`
	TargetDocumentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_document_id"`
	Relationship     string         `gorm:"column:relationship;not null" json:"relationship"`
	Strength         float64        `gorm:"column:strength;not null" json:"strength"`
	Confidence       float64        `gorm:"column:confidence;not null" json:"confidence"`
	Bidirectional    bool           `gorm:"column:bidirectional;not null;default:false" json:"bidirectional"`
	DiscoveredAt     time.Time      `gorm:"column:discovered_at;not null" json:"discovered_at"`
	DiscoveredBy     string         `gorm:"column:discovered_by" json:"discovered_by"`
	Tags             datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
}

func (ConnectionEntry) TableName() string { return "connection_entry" }
