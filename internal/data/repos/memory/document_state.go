// Package memory holds storage-free implementations of the repo
// interfaces. They back the concurrency and state-machine tests and the
// in-process mode of the driver; semantics mirror the gorm repos.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

type DocumentStateStore struct {
	mu          sync.Mutex
	docs        map[uuid.UUID]*types.DocumentState
	transitions *TransitionStore
	now         func() time.Time
}

func NewDocumentStateStore(transitions *TransitionStore) *DocumentStateStore {
	return &DocumentStateStore{
		docs:        map[uuid.UUID]*types.DocumentState{},
		transitions: transitions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func copyDocument(d *types.DocumentState) *types.DocumentState {
	out := *d
	if d.PreviousStage != nil {
		prev := *d.PreviousStage
		out.PreviousStage = &prev
	}
	out.Metadata = append([]byte(nil), d.Metadata...)
	out.StageResults = append([]byte(nil), d.StageResults...)
	out.ErrorInfo = append([]byte(nil), d.ErrorInfo...)
	return &out
}

func (s *DocumentStateStore) Create(_ dbctx.Context, doc *types.DocumentState) error {
	if doc == nil {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CurrentStage == "" {
		doc.CurrentStage = types.StageCreated
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.LastUpdated.IsZero() {
		doc.LastUpdated = now
	}
	if _, ok := s.docs[doc.ID]; ok {
		return pkgerrors.ErrInvalidArgument
	}
	s.docs[doc.ID] = copyDocument(doc)
	return nil
}

func (s *DocumentStateStore) GetByID(_ dbctx.Context, id uuid.UUID) (*types.DocumentState, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *DocumentStateStore) ListAdvanceable(_ dbctx.Context, limit int) ([]*types.DocumentState, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.DocumentState
	for _, doc := range s.docs {
		if doc.CurrentStage == types.StageConnected || doc.CurrentStage == types.StageError {
			continue
		}
		out = append(out, copyDocument(doc))
	}
	sortByLastUpdated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByLastUpdated(docs []*types.DocumentState) {
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && docs[j].LastUpdated.Before(docs[j-1].LastUpdated); j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

func (s *DocumentStateStore) Advance(dbc dbctx.Context, p pipelinerepo.AdvanceParams) (*types.DocumentState, error) {
	if p.DocumentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if !types.IsLegalTransition(p.ExpectedStage, p.ToStage) {
		return nil, fmt.Errorf("%s -> %s: %w", p.ExpectedStage, p.ToStage, pkgerrors.ErrIllegalTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[p.DocumentID]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	if doc.CurrentStage != p.ExpectedStage {
		return nil, pkgerrors.ErrStaleVersion
	}
	if p.ExpectedVersion > 0 && doc.Version != p.ExpectedVersion {
		return nil, pkgerrors.ErrStaleVersion
	}

	now := s.now()
	prev := doc.CurrentStage
	doc.PreviousStage = &prev
	doc.CurrentStage = p.ToStage
	doc.Version++
	doc.LastUpdated = now

	if p.ErrorInfo != nil {
		raw, err := json.Marshal(p.ErrorInfo)
		if err != nil {
			return nil, err
		}
		doc.ErrorInfo = raw
	} else if prev == types.StageError {
		doc.ErrorInfo = nil
	}
	if len(p.ResultPayload) > 0 {
		results, err := doc.StageResultMap()
		if err != nil {
			return nil, err
		}
		results[string(p.ToStage)] = p.ResultPayload
		raw, err := json.Marshal(results)
		if err != nil {
			return nil, err
		}
		doc.StageResults = raw
	}

	if s.transitions != nil {
		if err := s.transitions.Append(dbc, &types.TransitionRecord{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			FromStage:  prev,
			ToStage:    p.ToStage,
			Version:    doc.Version,
			AgentID:    p.AgentID,
			Message:    p.Message,
			CreatedAt:  now,
		}); err != nil {
			return nil, err
		}
	}
	return copyDocument(doc), nil
}

func (s *DocumentStateStore) ResetToCreated(dbc dbctx.Context, id uuid.UUID, content, contentHash, agentID string) (*types.DocumentState, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}

	now := s.now()
	prev := doc.CurrentStage
	doc.PreviousStage = &prev
	doc.CurrentStage = types.StageCreated
	doc.Version++
	doc.Content = content
	doc.ContentHash = contentHash
	doc.StageResults = nil
	doc.ErrorInfo = nil
	doc.LastUpdated = now

	if s.transitions != nil {
		if err := s.transitions.Append(dbc, &types.TransitionRecord{
			ID:         uuid.New(),
			DocumentID: id,
			FromStage:  prev,
			ToStage:    types.StageCreated,
			Version:    doc.Version,
			AgentID:    agentID,
			Message:    "content changed; document reopened",
			CreatedAt:  now,
		}); err != nil {
			return nil, err
		}
	}
	return copyDocument(doc), nil
}

var _ pipelinerepo.DocumentStateRepo = (*DocumentStateStore)(nil)
