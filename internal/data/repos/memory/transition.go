package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

type TransitionStore struct {
	mu   sync.Mutex
	recs map[uuid.UUID][]*types.TransitionRecord
}

func NewTransitionStore() *TransitionStore {
	return &TransitionStore{recs: map[uuid.UUID][]*types.TransitionRecord{}}
}

func (s *TransitionStore) Append(_ dbctx.Context, rec *types.TransitionRecord) error {
	if rec == nil || rec.DocumentID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.recs[rec.DocumentID] = append(s.recs[rec.DocumentID], &cp)
	return nil
}

func (s *TransitionStore) ListByDocument(_ dbctx.Context, documentID uuid.UUID) ([]*types.TransitionRecord, error) {
	if documentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.recs[documentID]
	out := make([]*types.TransitionRecord, len(src))
	for i, r := range src {
		cp := *r
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

var _ pipelinerepo.TransitionRepo = (*TransitionStore)(nil)
