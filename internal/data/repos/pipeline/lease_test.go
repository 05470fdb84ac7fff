package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/docflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLeaseRepo_AcquireAndContend(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewLeaseRepo(db, logg)

	docID := uuid.New()
	lease, err := repo.Acquire(dbc, docID, "agent-1", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lease.Holder != "agent-1" {
		t.Fatalf("expected holder agent-1, got %q", lease.Holder)
	}

	if _, err := repo.Acquire(dbc, docID, "agent-2", 30*time.Second); !errors.Is(err, pkgerrors.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld for second acquirer, got %v", err)
	}

	// Same holder re-acquiring still contends; leases are not reentrant.
	if _, err := repo.Acquire(dbc, docID, "agent-1", 30*time.Second); !errors.Is(err, pkgerrors.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld for reentrant acquire, got %v", err)
	}
}

func TestLeaseRepo_ExpiryReclaim(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewLeaseRepoWithClock(db, logg, clock.Now)

	docID := uuid.New()
	if _, err := repo.Acquire(dbc, docID, "agent-1", 5*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	clock.Advance(4 * time.Second)
	if _, err := repo.Acquire(dbc, docID, "agent-2", 5*time.Second); !errors.Is(err, pkgerrors.ErrLockHeld) {
		t.Fatalf("lease still live, expected ErrLockHeld, got %v", err)
	}

	clock.Advance(2 * time.Second)
	lease, err := repo.Acquire(dbc, docID, "agent-2", 5*time.Second)
	if err != nil {
		t.Fatalf("acquire over expired lease: %v", err)
	}
	if lease.Holder != "agent-2" {
		t.Fatalf("expected holder agent-2 after reclaim, got %q", lease.Holder)
	}
}

func TestLeaseRepo_RenewAndRelease(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewLeaseRepoWithClock(db, logg, clock.Now)

	docID := uuid.New()
	lease, err := repo.Acquire(dbc, docID, "agent-1", 5*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	clock.Advance(3 * time.Second)
	renewed, err := repo.Renew(dbc, lease.ID, "agent-1", 5*time.Second)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !renewed.ExpiresAt.After(lease.ExpiresAt) {
		t.Fatalf("renew should extend expiry: %v vs %v", renewed.ExpiresAt, lease.ExpiresAt)
	}

	if _, err := repo.Renew(dbc, lease.ID, "agent-2", 5*time.Second); !errors.Is(err, pkgerrors.ErrLeaseExpired) {
		t.Fatalf("expected ErrLeaseExpired renewing another holder's lease, got %v", err)
	}

	clock.Advance(6 * time.Second)
	if _, err := repo.Renew(dbc, lease.ID, "agent-1", 5*time.Second); !errors.Is(err, pkgerrors.ErrLeaseExpired) {
		t.Fatalf("expected ErrLeaseExpired after lapse, got %v", err)
	}

	if err := repo.Release(dbc, lease.ID, "agent-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Releasing again is a no-op.
	if err := repo.Release(dbc, lease.ID, "agent-1"); err != nil {
		t.Fatalf("idempotent release: %v", err)
	}

	if _, err := repo.GetByDocument(dbc, docID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after release, got %v", err)
	}
}
