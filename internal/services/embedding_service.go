package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	vectorsrepo "github.com/yungbote/docflow-backend/internal/data/repos/vectors"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// Embedder produces vectors for text. Implementations wrap whatever
// model backend is configured; the service only cares about identity and
// dimension.
type Embedder interface {
	ModelIdentity() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fragment is one embeddable slice of a document, ordered by Seq.
type Fragment struct {
	ID      uuid.UUID
	Seq     int
	Content string
}

type EmbeddingService interface {
	Put(ctx context.Context, rec *types.EmbeddingRecord) error
	NeedsRefresh(ctx context.Context, doc *types.DocumentState, modelIdentity string) (bool, error)
	RefreshDocument(ctx context.Context, doc *types.DocumentState, fragments []Fragment) error
	GetDocumentEmbedding(ctx context.Context, documentID uuid.UUID, modelIdentity string) (*types.EmbeddingRecord, error)
	ListFragmentEmbeddings(ctx context.Context, documentID uuid.UUID, modelIdentity string) ([]*types.EmbeddingRecord, error)
}

type embeddingService struct {
	embeddings vectorsrepo.EmbeddingRepo
	embedder   Embedder
	log        *logger.Logger

	// First write for a model identity pins its dimension; later writes
	// must agree.
	dimMu sync.Mutex
	dims  map[string]int
}

func NewEmbeddingService(embeddings vectorsrepo.EmbeddingRepo, embedder Embedder, baseLog *logger.Logger) EmbeddingService {
	svc := &embeddingService{
		embeddings: embeddings,
		embedder:   embedder,
		log:        baseLog.With("service", "EmbeddingService"),
		dims:       map[string]int{},
	}
	if embedder != nil && embedder.Dimension() > 0 {
		svc.dims[embedder.ModelIdentity()] = embedder.Dimension()
	}
	return svc
}

func (s *embeddingService) checkDimension(modelIdentity string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector: %w", pkgerrors.ErrInvalidArgument)
	}
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	want, ok := s.dims[modelIdentity]
	if !ok {
		s.dims[modelIdentity] = len(vec)
		return nil
	}
	if len(vec) != want {
		return fmt.Errorf("model %s expects %d dims, got %d: %w",
			modelIdentity, want, len(vec), pkgerrors.ErrDimensionMismatch)
	}
	return nil
}

func (s *embeddingService) Put(ctx context.Context, rec *types.EmbeddingRecord) error {
	if rec == nil {
		return pkgerrors.ErrInvalidArgument
	}
	vec := rec.Vector.Slice()
	if err := s.checkDimension(rec.ModelIdentity, vec); err != nil {
		return err
	}
	rec.Dimension = len(vec)
	return s.embeddings.Put(dbctx.New(ctx), rec)
}

// NeedsRefresh reports whether the stored document-level embedding is
// missing or was computed from different content.
func (s *embeddingService) NeedsRefresh(ctx context.Context, doc *types.DocumentState, modelIdentity string) (bool, error) {
	rec, err := s.embeddings.GetDocumentEmbedding(dbctx.New(ctx), doc.ID, modelIdentity)
	if isNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return rec.ContentHash != doc.ContentHash, nil
}

// RefreshDocument recomputes the document-level vector plus one vector
// per fragment. Fragment embeds run concurrently; any failure aborts the
// whole refresh so the store never holds a half-updated generation.
func (s *embeddingService) RefreshDocument(ctx context.Context, doc *types.DocumentState, fragments []Fragment) error {
	if s.embedder == nil {
		return fmt.Errorf("no embedder configured: %w", pkgerrors.ErrInvalidArgument)
	}
	model := s.embedder.ModelIdentity()

	docVec, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	if err := s.checkDimension(model, docVec); err != nil {
		return err
	}

	fragVecs := make([][]float32, len(fragments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, frag := range fragments {
		i, frag := i, frag
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, frag.Content)
			if err != nil {
				return fmt.Errorf("embed fragment %s: %w", frag.ID, err)
			}
			if err := s.checkDimension(model, vec); err != nil {
				return err
			}
			fragVecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dbc := dbctx.New(ctx)
	if err := s.embeddings.Put(dbc, &types.EmbeddingRecord{
		DocumentID:    doc.ID,
		ModelIdentity: model,
		Dimension:     len(docVec),
		ContentHash:   doc.ContentHash,
		Vector:        pgvector.NewVector(docVec),
	}); err != nil {
		return err
	}
	for i, frag := range fragments {
		fragID := frag.ID
		if err := s.embeddings.Put(dbc, &types.EmbeddingRecord{
			DocumentID:    doc.ID,
			FragmentID:    &fragID,
			Seq:           frag.Seq,
			ModelIdentity: model,
			Dimension:     len(fragVecs[i]),
			ContentHash:   HashContent(frag.Content),
			Vector:        pgvector.NewVector(fragVecs[i]),
		}); err != nil {
			return err
		}
	}
	s.log.Debug("embeddings refreshed", "document_id", doc.ID, "fragments", len(fragments), "model", model)
	return nil
}

func (s *embeddingService) GetDocumentEmbedding(ctx context.Context, documentID uuid.UUID, modelIdentity string) (*types.EmbeddingRecord, error) {
	return s.embeddings.GetDocumentEmbedding(dbctx.New(ctx), documentID, modelIdentity)
}

func (s *embeddingService) ListFragmentEmbeddings(ctx context.Context, documentID uuid.UUID, modelIdentity string) ([]*types.EmbeddingRecord, error) {
	return s.embeddings.ListFragmentEmbeddings(dbctx.New(ctx), documentID, modelIdentity)
}
