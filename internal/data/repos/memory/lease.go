package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

type LeaseStore struct {
	mu    sync.Mutex
	byDoc map[uuid.UUID]*types.Lease
	now   func() time.Time
}

func NewLeaseStore() *LeaseStore {
	return NewLeaseStoreWithClock(func() time.Time { return time.Now().UTC() })
}

func NewLeaseStoreWithClock(now func() time.Time) *LeaseStore {
	return &LeaseStore{
		byDoc: map[uuid.UUID]*types.Lease{},
		now:   now,
	}
}

func copyLease(l *types.Lease) *types.Lease {
	out := *l
	return &out
}

func (s *LeaseStore) Acquire(_ dbctx.Context, documentID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error) {
	if documentID == uuid.Nil || holder == "" || ttl <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.byDoc[documentID]; ok && !existing.ExpiredAt(now) {
		return nil, pkgerrors.ErrLockHeld
	}
	lease := &types.Lease{
		ID:         uuid.New(),
		DocumentID: documentID,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.byDoc[documentID] = lease
	return copyLease(lease), nil
}

func (s *LeaseStore) Renew(_ dbctx.Context, leaseID uuid.UUID, holder string, ttl time.Duration) (*types.Lease, error) {
	if leaseID == uuid.Nil || holder == "" || ttl <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, lease := range s.byDoc {
		if lease.ID != leaseID {
			continue
		}
		if lease.Holder != holder || lease.ExpiredAt(now) {
			return nil, pkgerrors.ErrLeaseExpired
		}
		lease.ExpiresAt = now.Add(ttl)
		return copyLease(lease), nil
	}
	return nil, pkgerrors.ErrLeaseExpired
}

func (s *LeaseStore) Release(_ dbctx.Context, leaseID uuid.UUID, holder string) error {
	if leaseID == uuid.Nil || holder == "" {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for docID, lease := range s.byDoc {
		if lease.ID == leaseID && lease.Holder == holder {
			delete(s.byDoc, docID)
			return nil
		}
	}
	return nil
}

func (s *LeaseStore) GetByDocument(_ dbctx.Context, documentID uuid.UUID) (*types.Lease, error) {
	if documentID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.byDoc[documentID]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return copyLease(lease), nil
}

var _ pipelinerepo.LeaseRepo = (*LeaseStore)(nil)
