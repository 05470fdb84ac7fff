package vectors

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// EmbeddingRepo stores one vector per (document, fragment, model). Put
// overwrites in place so a re-embedded document never accumulates stale
// rows for the same slot.
type EmbeddingRepo interface {
	Put(dbc dbctx.Context, rec *types.EmbeddingRecord) error
	GetDocumentEmbedding(dbc dbctx.Context, documentID uuid.UUID, modelIdentity string) (*types.EmbeddingRecord, error)
	ListFragmentEmbeddings(dbc dbctx.Context, documentID uuid.UUID, modelIdentity string) ([]*types.EmbeddingRecord, error)
	ListDocumentEmbeddings(dbc dbctx.Context, modelIdentity string) ([]*types.EmbeddingRecord, error)
	DeleteForDocument(dbc dbctx.Context, documentID uuid.UUID) error
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{
		db:  db,
		log: baseLog.With("repo", "EmbeddingRepo"),
	}
}

func (r *embeddingRepo) Put(dbc dbctx.Context, rec *types.EmbeddingRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil || rec.DocumentID == uuid.Nil || rec.ModelIdentity == "" {
		return pkgerrors.ErrInvalidArgument
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.UpdatedAt = time.Now().UTC()

	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("document_id = ? AND model_identity = ?", rec.DocumentID, rec.ModelIdentity)
		if rec.FragmentID == nil {
			q = q.Where("fragment_id IS NULL")
		} else {
			q = q.Where("fragment_id = ?", *rec.FragmentID)
		}
		var existing types.EmbeddingRecord
		err := q.First(&existing).Error
		switch {
		case err == nil:
			rec.ID = existing.ID
			return tx.Model(&types.EmbeddingRecord{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"seq":          rec.Seq,
					"dimension":    rec.Dimension,
					"content_hash": rec.ContentHash,
					"vector":       rec.Vector,
					"updated_at":   rec.UpdatedAt,
				}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(rec).Error
		default:
			return err
		}
	})
}

func (r *embeddingRepo) GetDocumentEmbedding(dbc dbctx.Context, documentID uuid.UUID, modelIdentity string) (*types.EmbeddingRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil || modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var rec types.EmbeddingRecord
	err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ? AND model_identity = ? AND fragment_id IS NULL", documentID, modelIdentity).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *embeddingRepo) ListFragmentEmbeddings(dbc dbctx.Context, documentID uuid.UUID, modelIdentity string) ([]*types.EmbeddingRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil || modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var out []*types.EmbeddingRecord
	err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ? AND model_identity = ? AND fragment_id IS NOT NULL", documentID, modelIdentity).
		Order("seq ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDocumentEmbeddings returns every document-level vector for one
// model, oldest write first. Candidate sets for similarity search are
// built from this ordering.
func (r *embeddingRepo) ListDocumentEmbeddings(dbc dbctx.Context, modelIdentity string) ([]*types.EmbeddingRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if modelIdentity == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var out []*types.EmbeddingRecord
	err := transaction.WithContext(dbc.Ctx).
		Where("model_identity = ? AND fragment_id IS NULL", modelIdentity).
		Order("updated_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddingRepo) DeleteForDocument(dbc dbctx.Context, documentID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil {
		return pkgerrors.ErrInvalidArgument
	}
	return transaction.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Delete(&types.EmbeddingRecord{}).Error
}
