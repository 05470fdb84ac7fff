package pipeline

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

// LeaseRepo grants at most one live lease per document. Expired rows are
// reclaimed in place on the next Acquire; there is no background sweeper.
type LeaseRepo interface {
	Acquire(dbc dbctx.Context, documentID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error)
	Renew(dbc dbctx.Context, leaseID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error)
	Release(dbc dbctx.Context, leaseID uuid.UUID, holder string) error
	GetByDocument(dbc dbctx.Context, documentID uuid.UUID) (*types.Lease, error)
}

type leaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewLeaseRepo(db *gorm.DB, baseLog *logger.Logger) LeaseRepo {
	return NewLeaseRepoWithClock(db, baseLog, func() time.Time { return time.Now().UTC() })
}

// NewLeaseRepoWithClock exists for tests that drive expiry with a
// simulated clock.
func NewLeaseRepoWithClock(db *gorm.DB, baseLog *logger.Logger, now func() time.Time) LeaseRepo {
	return &leaseRepo{
		db:  db,
		log: baseLog.With("repo", "LeaseRepo"),
		now: now,
	}
}

func (r *leaseRepo) Acquire(dbc dbctx.Context, documentID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil || holder == "" || ttl <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}

	var out *types.Lease
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		var existing types.Lease
		err := tx.Where("document_id = ?", documentID).First(&existing).Error
		switch {
		case err == nil:
			if !existing.ExpiredAt(now) {
				return pkgerrors.ErrLockHeld
			}
			// Reclaim the expired row rather than delete+insert, so the
			// unique index never has a gap two acquirers could race into.
			res := tx.Model(&types.Lease{}).
				Where("id = ? AND expires_at = ?", existing.ID, existing.ExpiresAt).
				Updates(map[string]interface{}{
					"id":          uuid.New(),
					"holder":      holder,
					"acquired_at": now,
					"expires_at":  now.Add(ttl),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return pkgerrors.ErrLockHeld
			}
			var claimed types.Lease
			if err := tx.Where("document_id = ?", documentID).First(&claimed).Error; err != nil {
				return err
			}
			out = &claimed
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			lease := &types.Lease{
				ID:         uuid.New(),
				DocumentID: documentID,
				Holder:     holder,
				AcquiredAt: now,
				ExpiresAt:  now.Add(ttl),
			}
			if err := tx.Create(lease).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return pkgerrors.ErrLockHeld
				}
				return err
			}
			out = lease
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *leaseRepo) Renew(dbc dbctx.Context, leaseID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if leaseID == uuid.Nil || holder == "" || ttl <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	now := r.now()
	res := transaction.WithContext(dbc.Ctx).Model(&types.Lease{}).
		Where("id = ? AND holder = ? AND expires_at > ?", leaseID, holder, now).
		Update("expires_at", now.Add(ttl))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the lease lapsed or it was never this holder's to renew.
		return nil, pkgerrors.ErrLeaseExpired
	}
	var lease types.Lease
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", leaseID).First(&lease).Error; err != nil {
		return nil, err
	}
	return &lease, nil
}

// Release is idempotent: releasing a lease that already lapsed or was
// reclaimed is not an error.
func (r *leaseRepo) Release(dbc dbctx.Context, leaseID uuid.UUID, holder string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if leaseID == uuid.Nil || holder == "" {
		return pkgerrors.ErrInvalidArgument
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND holder = ?", leaseID, holder).
		Delete(&types.Lease{}).Error
}

func (r *leaseRepo) GetByDocument(dbc dbctx.Context, documentID uuid.UUID) (*types.Lease, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var lease types.Lease
	err := transaction.WithContext(dbc.Ctx).Where("document_id = ?", documentID).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}
