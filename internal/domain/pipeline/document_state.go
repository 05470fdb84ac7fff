package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentState is the durable record of one document in the pipeline.
// version increases by exactly 1 on every committed mutation.
type DocumentState struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CurrentStage  Stage          `gorm:"column:current_stage;not null;index" json:"current_stage"`
	PreviousStage *Stage         `gorm:"column:previous_stage" json:"previous_stage,omitempty"`
	Version       int            `gorm:"column:version;not null;default:1" json:"version"`
	Content       string         `gorm:"column:content;type:text" json:"content,omitempty"`
	ContentHash   string         `gorm:"column:content_hash;index" json:"content_hash"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	StageResults  datatypes.JSON `gorm:"column:stage_results;type:jsonb" json:"stage_results,omitempty"`
	ErrorInfo     datatypes.JSON `gorm:"column:error_info;type:jsonb" json:"error_info,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	LastUpdated   time.Time      `gorm:"column:last_updated;not null;index" json:"last_updated"`
}

func (DocumentState) TableName() string { return "document_state" }

// ErrorInfo is the structured payload stored when a document enters the
// error stage.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Stage   Stage  `json:"stage"`
}

// DecodeErrorInfo unmarshals the stored error payload; nil when absent.
func (d *DocumentState) DecodeErrorInfo() (*ErrorInfo, error) {
	if len(d.ErrorInfo) == 0 || string(d.ErrorInfo) == "null" {
		return nil, nil
	}
	var info ErrorInfo
	if err := json.Unmarshal(d.ErrorInfo, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StageResultMap decodes the per-stage result slots, keyed by stage name.
func (d *DocumentState) StageResultMap() (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if len(d.StageResults) == 0 || string(d.StageResults) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(d.StageResults, &out); err != nil {
		return nil, err
	}
	return out, nil
}
