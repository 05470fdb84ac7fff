package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	vectorsrepo "github.com/yungbote/docflow-backend/internal/data/repos/vectors"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

type embeddingKey struct {
	documentID uuid.UUID
	fragmentID uuid.UUID
	model      string
}

type EmbeddingStore struct {
	mu    sync.Mutex
	recs  map[embeddingKey]*types.EmbeddingRecord
	order []embeddingKey
}

func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{recs: map[embeddingKey]*types.EmbeddingRecord{}}
}

func keyFor(rec *types.EmbeddingRecord) embeddingKey {
	k := embeddingKey{documentID: rec.DocumentID, model: rec.ModelIdentity}
	if rec.FragmentID != nil {
		k.fragmentID = *rec.FragmentID
	}
	return k
}

func copyEmbedding(r *types.EmbeddingRecord) *types.EmbeddingRecord {
	out := *r
	if r.FragmentID != nil {
		id := *r.FragmentID
		out.FragmentID = &id
	}
	return &out
}

func (s *EmbeddingStore) Put(_ dbctx.Context, rec *types.EmbeddingRecord) error {
	if rec == nil || rec.DocumentID == uuid.Nil || rec.ModelIdentity == "" {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyFor(rec)
	if existing, ok := s.recs[k]; ok {
		rec.ID = existing.ID
	} else {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		s.order = append(s.order, k)
	}
	rec.UpdatedAt = time.Now().UTC()
	s.recs[k] = copyEmbedding(rec)
	return nil
}

func (s *EmbeddingStore) GetDocumentEmbedding(_ dbctx.Context, documentID uuid.UUID, modelIdentity string) (*types.EmbeddingRecord, error) {
	if documentID == uuid.Nil || modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[embeddingKey{documentID: documentID, model: modelIdentity}]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return copyEmbedding(rec), nil
}

func (s *EmbeddingStore) ListFragmentEmbeddings(_ dbctx.Context, documentID uuid.UUID, modelIdentity string) ([]*types.EmbeddingRecord, error) {
	if documentID == uuid.Nil || modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.EmbeddingRecord
	for _, k := range s.order {
		rec, ok := s.recs[k]
		if !ok {
			continue
		}
		if rec.DocumentID != documentID || rec.ModelIdentity != modelIdentity || rec.FragmentID == nil {
			continue
		}
		out = append(out, copyEmbedding(rec))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// ListDocumentEmbeddings preserves insertion order, which the similarity
// search relies on for deterministic tie-breaks.
func (s *EmbeddingStore) ListDocumentEmbeddings(_ dbctx.Context, modelIdentity string) ([]*types.EmbeddingRecord, error) {
	if modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.EmbeddingRecord
	for _, k := range s.order {
		rec, ok := s.recs[k]
		if !ok {
			continue
		}
		if rec.ModelIdentity != modelIdentity || rec.FragmentID != nil {
			continue
		}
		out = append(out, copyEmbedding(rec))
	}
	return out, nil
}

func (s *EmbeddingStore) DeleteForDocument(_ dbctx.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.recs {
		if k.documentID == documentID {
			delete(s.recs, k)
		}
	}
	return nil
}

var _ vectorsrepo.EmbeddingRepo = (*EmbeddingStore)(nil)

type ConnectionStore struct {
	mu       sync.Mutex
	bySource map[uuid.UUID][]*types.ConnectionEntry
}

func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{bySource: map[uuid.UUID][]*types.ConnectionEntry{}}
}

func (s *ConnectionStore) ReplaceForSource(_ dbctx.Context, sourceID uuid.UUID, entries []*types.ConnectionEntry) error {
	if sourceID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	stored := make([]*types.ConnectionEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.TargetDocumentID == uuid.Nil {
			return pkgerrors.ErrInvalidArgument
		}
		cp := *e
		cp.SourceDocumentID = sourceID
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.DiscoveredAt.IsZero() {
			cp.DiscoveredAt = now
		}
		stored = append(stored, &cp)
	}
	s.bySource[sourceID] = stored
	return nil
}

func (s *ConnectionStore) ListBySource(_ dbctx.Context, sourceID uuid.UUID) ([]*types.ConnectionEntry, error) {
	if sourceID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.bySource[sourceID]
	out := make([]*types.ConnectionEntry, len(src))
	for i, e := range src {
		cp := *e
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out, nil
}

func (s *ConnectionStore) ListByTarget(_ dbctx.Context, targetID uuid.UUID) ([]*types.ConnectionEntry, error) {
	if targetID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ConnectionEntry
	for _, entries := range s.bySource {
		for _, e := range entries {
			if e.TargetDocumentID == targetID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out, nil
}

var _ vectorsrepo.ConnectionRepo = (*ConnectionStore)(nil)
