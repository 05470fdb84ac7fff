package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Lease is a time-bounded exclusive claim on a document. The unique index
// on document_id keeps at most one lease row per document; expiry-based
// reclaim happens at acquire time.
type Lease struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"document_id"`
	Holder     string    `gorm:"column:holder;not null" json:"holder"`
	AcquiredAt time.Time `gorm:"column:acquired_at;not null" json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (Lease) TableName() string { return "lease" }

// ExpiredAt reports whether the lease is expired relative to now.
func (l *Lease) ExpiredAt(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
