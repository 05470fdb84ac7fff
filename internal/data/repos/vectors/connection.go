package vectors

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

type ConnectionRepo interface {
	ReplaceForSource(dbc dbctx.Context, sourceID uuid.UUID, entries []*types.ConnectionEntry) error
	ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.ConnectionEntry, error)
	ListByTarget(dbc dbctx.Context, targetID uuid.UUID) ([]*types.ConnectionEntry, error)
}

type connectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConnectionRepo(db *gorm.DB, baseLog *logger.Logger) ConnectionRepo {
	return &connectionRepo{
		db:  db,
		log: baseLog.With("repo", "ConnectionRepo"),
	}
}

// ReplaceForSource swaps the full outgoing edge set of one document in a
// single transaction. Proposing connections is a whole-set operation, so
// partial merges are never wanted.
func (r *connectionRepo) ReplaceForSource(dbc dbctx.Context, sourceID uuid.UUID, entries []*types.ConnectionEntry) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sourceID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_document_id = ?", sourceID).Delete(&types.ConnectionEntry{}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			if e == nil || e.TargetDocumentID == uuid.Nil {
				return pkgerrors.ErrInvalidArgument
			}
			e.SourceDocumentID = sourceID
			if e.ID == uuid.Nil {
				e.ID = uuid.New()
			}
			if e.DiscoveredAt.IsZero() {
				e.DiscoveredAt = now
			}
			if err := tx.Create(e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *connectionRepo) ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.ConnectionEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sourceID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var out []*types.ConnectionEntry
	err := transaction.WithContext(dbc.Ctx).
		Where("source_document_id = ?", sourceID).
		Order("strength DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *connectionRepo) ListByTarget(dbc dbctx.Context, targetID uuid.UUID) ([]*types.ConnectionEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if targetID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var out []*types.ConnectionEntry
	err := transaction.WithContext(dbc.Ctx).
		Where("target_document_id = ?", targetID).
		Order("strength DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
