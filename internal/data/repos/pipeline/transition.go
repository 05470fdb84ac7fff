package pipeline

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

type TransitionRepo interface {
	Append(dbc dbctx.Context, rec *types.TransitionRecord) error
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.TransitionRecord, error)
}

type transitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransitionRepo(db *gorm.DB, baseLog *logger.Logger) TransitionRepo {
	return &transitionRepo{
		db:  db,
		log: baseLog.With("repo", "TransitionRepo"),
	}
}

func (r *transitionRepo) Append(dbc dbctx.Context, rec *types.TransitionRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil || rec.DocumentID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return transaction.WithContext(dbc.Ctx).Create(rec).Error
}

func (r *transitionRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]*types.TransitionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var out []*types.TransitionRecord
	err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Order("version ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
