package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// AdvanceParams carries one requested stage change. ExpectedVersion 0
// skips the version half of the optimistic check; the stage half always
// applies.
type AdvanceParams struct {
	DocumentID      uuid.UUID
	ExpectedStage   types.Stage
	ExpectedVersion int
	ToStage         types.Stage
	AgentID         string
	Message         string
	ResultPayload   json.RawMessage
	ErrorInfo       *types.ErrorInfo
}

type DocumentStateRepo interface {
	Create(dbc dbctx.Context, doc *types.DocumentState) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentState, error)
	ListAdvanceable(dbc dbctx.Context, limit int) ([]*types.DocumentState, error)
	Advance(dbc dbctx.Context, p AdvanceParams) (*types.DocumentState, error)
	ResetToCreated(dbc dbctx.Context, id uuid.UUID, content, contentHash, agentID string) (*types.DocumentState, error)
}

type documentStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentStateRepo(db *gorm.DB, baseLog *logger.Logger) DocumentStateRepo {
	return &documentStateRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentStateRepo"),
	}
}

func (r *documentStateRepo) Create(dbc dbctx.Context, doc *types.DocumentState) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if doc == nil {
		return pkgerrors.ErrInvalidArgument
	}
	now := time.Now().UTC()
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
	return transaction.WithContext(dbc.Ctx).Create(doc).Error
}

func (r *documentStateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var doc types.DocumentState
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListAdvanceable returns documents still moving through the forward
// pipeline, oldest progress first. Error-stage documents are excluded;
// retries are operator-driven.
func (r *documentStateRepo) ListAdvanceable(dbc dbctx.Context, limit int) ([]*types.DocumentState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.DocumentState
	err := transaction.WithContext(dbc.Ctx).
		Where("current_stage NOT IN ?", []types.Stage{types.StageConnected, types.StageError}).
		Order("last_updated ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentStateRepo) Advance(dbc dbctx.Context, p AdvanceParams) (*types.DocumentState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if p.DocumentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if !types.IsLegalTransition(p.ExpectedStage, p.ToStage) {
		return nil, fmt.Errorf("%s -> %s: %w", p.ExpectedStage, p.ToStage, pkgerrors.ErrIllegalTransition)
	}

	var out *types.DocumentState
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var doc types.DocumentState
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ?", p.DocumentID).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.ErrNotFound
			}
			return err
		}
		if doc.CurrentStage != p.ExpectedStage {
			return pkgerrors.ErrStaleVersion
		}
		if p.ExpectedVersion > 0 && doc.Version != p.ExpectedVersion {
			return pkgerrors.ErrStaleVersion
		}

		now := time.Now().UTC()
		newVersion := doc.Version + 1
		updates := map[string]interface{}{
			"current_stage":  p.ToStage,
			"previous_stage": doc.CurrentStage,
			"version":        newVersion,
			"last_updated":   now,
		}
		if p.ErrorInfo != nil {
			raw, err := json.Marshal(p.ErrorInfo)
			if err != nil {
				return err
			}
			updates["error_info"] = raw
		} else if doc.CurrentStage == types.StageError {
			// A successful retry out of error clears the failure payload.
			updates["error_info"] = nil
		}
		if len(p.ResultPayload) > 0 {
			results, err := doc.StageResultMap()
			if err != nil {
				return err
			}
			results[string(p.ToStage)] = p.ResultPayload
			raw, err := json.Marshal(results)
			if err != nil {
				return err
			}
			updates["stage_results"] = raw
		}

		// The WHERE clause repeats the optimistic check so concurrent
		// committers cannot both apply on top of the same version.
		res := tx.Model(&types.DocumentState{}).
			Where("id = ? AND version = ? AND current_stage = ?", p.DocumentID, doc.Version, doc.CurrentStage).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrStaleVersion
		}

		rec := &types.TransitionRecord{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			FromStage:  doc.CurrentStage,
			ToStage:    p.ToStage,
			Version:    newVersion,
			AgentID:    p.AgentID,
			Message:    p.Message,
			CreatedAt:  now,
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		var updated types.DocumentState
		if err := tx.Where("id = ?", p.DocumentID).First(&updated).Error; err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResetToCreated reopens a document whose source content changed. This is
// driver policy, not a stage-graph edge, so it bypasses the legality
// check; the reset is still recorded in the transition log.
func (r *documentStateRepo) ResetToCreated(dbc dbctx.Context, id uuid.UUID, content, contentHash, agentID string) (*types.DocumentState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}

	var out *types.DocumentState
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var doc types.DocumentState
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ?", id).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		newVersion := doc.Version + 1
		res := tx.Model(&types.DocumentState{}).
			Where("id = ? AND version = ?", id, doc.Version).
			Updates(map[string]interface{}{
				"current_stage":  types.StageCreated,
				"previous_stage": doc.CurrentStage,
				"version":        newVersion,
				"content":        content,
				"content_hash":   contentHash,
				"stage_results":  nil,
				"error_info":     nil,
				"last_updated":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrStaleVersion
		}

		rec := &types.TransitionRecord{
			ID:         uuid.New(),
			DocumentID: id,
			FromStage:  doc.CurrentStage,
			ToStage:    types.StageCreated,
			Version:    newVersion,
			AgentID:    agentID,
			Message:    "content changed; document reopened",
			CreatedAt:  now,
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		var updated types.DocumentState
		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
