// Package pipeline drives documents through the enrichment stages. The
// driver owns lease acquisition, transform execution, and commit; the
// transforms themselves are pluggable per stage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	types "github.com/yungbote/docflow-backend/internal/domain"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

// TransformResult is what a stage transform hands back on success. The
// payload lands in the document's stage result slot for its stage.
type TransformResult struct {
	Payload json.RawMessage
	Message string
}

// StageTransform performs the work that moves a document INTO its stage.
// Process must be safe to re-run: a crashed agent's lease expires and
// another agent will execute the same stage again.
type StageTransform interface {
	Stage() types.Stage
	Process(ctx context.Context, doc *types.DocumentState) (*TransformResult, error)
}

// TransformRegistry maps target stages to their transforms.
type TransformRegistry struct {
	mu      sync.RWMutex
	byStage map[types.Stage]StageTransform
}

func NewTransformRegistry() *TransformRegistry {
	return &TransformRegistry{byStage: map[types.Stage]StageTransform{}}
}

func (r *TransformRegistry) Register(t StageTransform) error {
	if t == nil {
		return pkgerrors.ErrInvalidArgument
	}
	stage := t.Stage()
	if !stage.Valid() || stage == types.StageCreated || stage == types.StageError {
		return fmt.Errorf("no transform may target stage %q: %w", stage, pkgerrors.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byStage[stage]; ok {
		return fmt.Errorf("transform already registered for %q: %w", stage, pkgerrors.ErrInvalidArgument)
	}
	r.byStage[stage] = t
	return nil
}

func (r *TransformRegistry) Lookup(stage types.Stage) (StageTransform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byStage[stage]
	return t, ok
}
