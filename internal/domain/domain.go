package domain

import (
	"github.com/yungbote/docflow-backend/internal/domain/pipeline"
	"github.com/yungbote/docflow-backend/internal/domain/vectors"
)

type (
	Stage            = pipeline.Stage
	DocumentState    = pipeline.DocumentState
	ErrorInfo        = pipeline.ErrorInfo
	Lease            = pipeline.Lease
	TransitionRecord = pipeline.TransitionRecord

	EmbeddingRecord = vectors.EmbeddingRecord
	ConnectionEntry = vectors.ConnectionEntry
)

const (
	StageCreated        = pipeline.StageCreated
	StageCaptured       = pipeline.StageCaptured
	StageContextualized = pipeline.StageContextualized
	StageClarified      = pipeline.StageClarified
	StageCategorized    = pipeline.StageCategorized
	StageCrystallized   = pipeline.StageCrystallized
	StageConnected      = pipeline.StageConnected
	StageError          = pipeline.StageError
)

var ForwardStages = pipeline.ForwardStages

func NextStage(s Stage) (Stage, bool)       { return pipeline.NextStage(s) }
func IsLegalTransition(from, to Stage) bool { return pipeline.IsLegalTransition(from, to) }
