package vectors

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRecord holds one vector: the whole-document vector when
// FragmentID is nil, otherwise a fragment vector owned by the document.
// On Postgres the column is a native pgvector value; on sqlite it degrades
// to the text encoding, which round-trips bit-exact but loses native
// nearest-neighbor indexing.
type EmbeddingRecord struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"document_id"`
	FragmentID    *uuid.UUID      `gorm:"type:uuid;index" json:"fragment_id,omitempty"`
	Seq           int             `gorm:"column:seq;not null;default:0" json:"seq"`
	ModelIdentity string          `gorm:"column:model_identity;not null;index" json:"model_identity"`
	Dimension     int             `gorm:"column:dimension;not null" json:"dimension"`
	ContentHash   string          `gorm:"column:content_hash" json:"content_hash"`
	Vector        pgvector.Vector `gorm:"column:vector;type:vector" json:"vector"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (EmbeddingRecord) TableName() string { return "embedding_record" }

// IsDocument reports whether this is the whole-document vector.
func (e *EmbeddingRecord) IsDocument() bool { return e.FragmentID == nil }
