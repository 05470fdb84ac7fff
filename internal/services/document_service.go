// Package services holds the application services wired between the HTTP
// layer and the repos: document lifecycle, embeddings, and the
// connection engine.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/events"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// AdvanceInput is an externally requested transition, e.g. from the HTTP
// surface. The version is required here: outside callers must prove they
// saw the state they are mutating.
type AdvanceInput struct {
	DocumentID      uuid.UUID
	ExpectedStage   types.Stage
	ExpectedVersion int
	ToStage         types.Stage
	AgentID         string
	Message         string
	ResultPayload   json.RawMessage
	ErrorInfo       *types.ErrorInfo
}

type DocumentService interface {
	Ingest(ctx context.Context, documentID *uuid.UUID, content string, metadata json.RawMessage) (*types.DocumentState, bool, error)
	GetState(ctx context.Context, id uuid.UUID) (*types.DocumentState, error)
	Advance(ctx context.Context, in AdvanceInput) (*types.DocumentState, error)
	ListTransitions(ctx context.Context, id uuid.UUID) ([]*types.TransitionRecord, error)
}

type documentService struct {
	docs        pipelinerepo.DocumentStateRepo
	transitions pipelinerepo.TransitionRepo
	publisher   events.Publisher
	log         *logger.Logger
}

func NewDocumentService(
	docs pipelinerepo.DocumentStateRepo,
	transitions pipelinerepo.TransitionRepo,
	publisher events.Publisher,
	baseLog *logger.Logger,
) DocumentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &documentService{
		docs:        docs,
		transitions: transitions,
		publisher:   publisher,
		log:         baseLog.With("service", "DocumentService"),
	}
}

func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Ingest registers new content. Without a document id it always creates.
// With one, unchanged content is a no-op returning the current state;
// changed content reopens the document at created with a bumped version.
// The second return reports whether an existing document was reopened.
func (s *documentService) Ingest(ctx context.Context, documentID *uuid.UUID, content string, metadata json.RawMessage) (*types.DocumentState, bool, error) {
	if strings.TrimSpace(content) == "" {
		return nil, false, pkgerrors.ErrInvalidArgument
	}
	dbc := dbctx.New(ctx)
	hash := HashContent(content)

	if documentID != nil && *documentID != uuid.Nil {
		existing, err := s.docs.GetByID(dbc, *documentID)
		if err != nil && !isNotFound(err) {
			return nil, false, err
		}
		if err == nil {
			if existing.ContentHash == hash {
				return existing, false, nil
			}
			reopened, err := s.docs.ResetToCreated(dbc, existing.ID, content, hash, "ingest")
			if err != nil {
				return nil, false, err
			}
			s.publisher.Publish(events.StageEvent{
				DocumentID: reopened.ID,
				FromStage:  existing.CurrentStage,
				ToStage:    reopened.CurrentStage,
				Version:    reopened.Version,
				AgentID:    "ingest",
				Message:    "content changed; document reopened",
				OccurredAt: reopened.LastUpdated,
			})
			s.log.Info("document reopened", "document_id", reopened.ID, "version", reopened.Version)
			return reopened, true, nil
		}
	}

	doc := &types.DocumentState{
		Content:     content,
		ContentHash: hash,
		Metadata:    []byte(metadata),
	}
	if documentID != nil && *documentID != uuid.Nil {
		doc.ID = *documentID
	}
	if err := s.docs.Create(dbc, doc); err != nil {
		return nil, false, err
	}
	s.log.Info("document created", "document_id", doc.ID)
	return doc, false, nil
}

func (s *documentService) GetState(ctx context.Context, id uuid.UUID) (*types.DocumentState, error) {
	return s.docs.GetByID(dbctx.New(ctx), id)
}

func (s *documentService) Advance(ctx context.Context, in AdvanceInput) (*types.DocumentState, error) {
	if in.ExpectedVersion <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	dbc := dbctx.New(ctx)
	updated, err := s.docs.Advance(dbc, pipelinerepo.AdvanceParams{
		DocumentID:      in.DocumentID,
		ExpectedStage:   in.ExpectedStage,
		ExpectedVersion: in.ExpectedVersion,
		ToStage:         in.ToStage,
		AgentID:         in.AgentID,
		Message:         in.Message,
		ResultPayload:   in.ResultPayload,
		ErrorInfo:       in.ErrorInfo,
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(events.StageEvent{
		DocumentID: updated.ID,
		FromStage:  in.ExpectedStage,
		ToStage:    updated.CurrentStage,
		Version:    updated.Version,
		AgentID:    in.AgentID,
		Message:    in.Message,
		OccurredAt: updated.LastUpdated,
	})
	return updated, nil
}

func (s *documentService) ListTransitions(ctx context.Context, id uuid.UUID) ([]*types.TransitionRecord, error) {
	return s.transitions.ListByDocument(dbctx.New(ctx), id)
}

func isNotFound(err error) bool {
	return errors.Is(err, pkgerrors.ErrNotFound)
}
