package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/events"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// Finalizer runs after a document commits into the connected stage.
// The connection engine hangs off this hook.
type Finalizer interface {
	DocumentConnected(ctx context.Context, doc *types.DocumentState) error
}

type DriverConfig struct {
	AgentID         string
	LeaseTTL        time.Duration
	AcquireAttempts int
	AcquireBackoff  time.Duration
	BatchSize       int
}

func (c *DriverConfig) fill() {
	if c.AgentID == "" {
		c.AgentID = "driver-" + uuid.New().String()[:8]
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.AcquireAttempts <= 0 {
		c.AcquireAttempts = 3
	}
	if c.AcquireBackoff <= 0 {
		c.AcquireBackoff = 200 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
}

// Driver executes stage transforms under lease protection and commits
// the results through the optimistic advance.
type Driver struct {
	docs      pipelinerepo.DocumentStateRepo
	leases    pipelinerepo.LeaseRepo
	registry  *TransformRegistry
	policy    *AccessPolicy
	publisher events.Publisher
	finalizer Finalizer
	log       *logger.Logger
	cfg       DriverConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewDriver(
	docs pipelinerepo.DocumentStateRepo,
	leases pipelinerepo.LeaseRepo,
	registry *TransformRegistry,
	policy *AccessPolicy,
	publisher events.Publisher,
	finalizer Finalizer,
	baseLog *logger.Logger,
	cfg DriverConfig,
) *Driver {
	cfg.fill()
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Driver{
		docs:      docs,
		leases:    leases,
		registry:  registry,
		policy:    policy,
		publisher: publisher,
		finalizer: finalizer,
		log:       baseLog.With("component", "PipelineDriver", "agent_id", cfg.AgentID),
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AdvanceOnce moves one document a single stage forward: acquire the
// lease, run the transform for the next stage, commit, release. A
// transform failure is itself committed, as a transition into error.
func (d *Driver) AdvanceOnce(ctx context.Context, documentID uuid.UUID) error {
	dbc := dbctx.New(ctx)

	doc, err := d.docs.GetByID(dbc, documentID)
	if err != nil {
		return err
	}
	if doc.CurrentStage == types.StageError {
		return nil
	}
	next, ok := types.NextStage(doc.CurrentStage)
	if !ok {
		return nil
	}
	transform, ok := d.registry.Lookup(next)
	if !ok {
		return fmt.Errorf("no transform registered for stage %q", next)
	}
	if !d.policy.CanWrite(next, d.cfg.AgentID) {
		return fmt.Errorf("stage %q: %w", next, pkgerrors.ErrAccessDenied)
	}

	lease, err := d.acquire(ctx, dbc, documentID)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.leases.Release(dbc, lease.ID, d.cfg.AgentID); err != nil {
			d.log.Warn("lease release failed", "document_id", documentID, "error", err)
		}
	}()

	// Another agent may have moved the document while we waited on the
	// lease; work only from the state we actually hold it at.
	doc, err = d.docs.GetByID(dbc, documentID)
	if err != nil {
		return err
	}
	if doc.CurrentStage == types.StageError || doc.CurrentStage.Terminal() {
		return nil
	}
	next, ok = types.NextStage(doc.CurrentStage)
	if !ok {
		return nil
	}
	if transform.Stage() != next {
		transform, ok = d.registry.Lookup(next)
		if !ok {
			return fmt.Errorf("no transform registered for stage %q", next)
		}
	}
	// The target stage may differ from the one checked before the lease.
	if !d.policy.CanWrite(next, d.cfg.AgentID) {
		return fmt.Errorf("stage %q: %w", next, pkgerrors.ErrAccessDenied)
	}

	res, terr := runTransform(ctx, transform, doc)
	if terr != nil {
		return d.commitFailure(ctx, dbc, doc, next, terr)
	}

	params := pipelinerepo.AdvanceParams{
		DocumentID:      doc.ID,
		ExpectedStage:   doc.CurrentStage,
		ExpectedVersion: doc.Version,
		ToStage:         next,
		AgentID:         d.cfg.AgentID,
	}
	if res != nil {
		params.ResultPayload = res.Payload
		params.Message = res.Message
	}
	updated, err := d.docs.Advance(dbc, params)
	if err != nil {
		return err
	}

	d.publish(doc.CurrentStage, updated, params.Message)
	d.log.Debug("document advanced",
		"document_id", doc.ID,
		"from", doc.CurrentStage,
		"to", updated.CurrentStage,
		"version", updated.Version)

	if updated.CurrentStage == types.StageConnected && d.finalizer != nil {
		if err := d.finalizer.DocumentConnected(ctx, updated); err != nil {
			d.log.Warn("finalizer failed", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}

// Retry moves an error-stage document back to the stage recorded in its
// failure payload so the pipeline can take another pass at it.
func (d *Driver) Retry(ctx context.Context, documentID uuid.UUID) error {
	dbc := dbctx.New(ctx)

	doc, err := d.docs.GetByID(dbc, documentID)
	if err != nil {
		return err
	}
	if doc.CurrentStage != types.StageError {
		return fmt.Errorf("document %s is not in error: %w", documentID, pkgerrors.ErrIllegalTransition)
	}
	info, err := doc.DecodeErrorInfo()
	if err != nil {
		return err
	}
	target := types.StageCaptured
	if info != nil && info.Stage.Valid() {
		target = info.Stage
	}
	if !d.policy.CanWrite(target, d.cfg.AgentID) {
		return fmt.Errorf("stage %q: %w", target, pkgerrors.ErrAccessDenied)
	}

	lease, err := d.acquire(ctx, dbc, documentID)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.leases.Release(dbc, lease.ID, d.cfg.AgentID)
	}()

	doc, err = d.docs.GetByID(dbc, documentID)
	if err != nil {
		return err
	}
	if doc.CurrentStage != types.StageError {
		return nil
	}

	updated, err := d.docs.Advance(dbc, pipelinerepo.AdvanceParams{
		DocumentID:      doc.ID,
		ExpectedStage:   types.StageError,
		ExpectedVersion: doc.Version,
		ToStage:         target,
		AgentID:         d.cfg.AgentID,
		Message:         "retry after failure",
	})
	if err != nil {
		return err
	}
	d.publish(types.StageError, updated, "retry after failure")
	d.log.Info("document retried", "document_id", doc.ID, "to", target, "version", updated.Version)
	return nil
}

// RunOnce makes one pass over the advanceable backlog. Documents whose
// lease is held elsewhere are skipped, not failed.
func (d *Driver) RunOnce(ctx context.Context) error {
	dbc := dbctx.New(ctx)
	docs, err := d.docs.ListAdvanceable(dbc, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.AdvanceOnce(ctx, doc.ID); err != nil {
			if errors.Is(err, pkgerrors.ErrLockHeld) || errors.Is(err, pkgerrors.ErrStaleVersion) {
				continue
			}
			d.log.Error("advance failed", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}

func (d *Driver) acquire(ctx context.Context, dbc dbctx.Context, documentID uuid.UUID) (*types.Lease, error) {
	var lastErr error
	for attempt := 0; attempt < d.cfg.AcquireAttempts; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.cfg.AcquireBackoff); err != nil {
				return nil, err
			}
		}
		lease, err := d.leases.Acquire(dbc, documentID, d.cfg.AgentID, d.cfg.LeaseTTL)
		if err == nil {
			return lease, nil
		}
		if !errors.Is(err, pkgerrors.ErrLockHeld) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (d *Driver) commitFailure(ctx context.Context, dbc dbctx.Context, doc *types.DocumentState, target types.Stage, terr error) error {
	info := &types.ErrorInfo{
		Kind:    "transform_failure",
		Message: terr.Error(),
		Stage:   target,
	}
	var tf *pkgerrors.TransformFailure
	if errors.As(terr, &tf) {
		info.Message = tf.Message
	}

	updated, err := d.docs.Advance(dbc, pipelinerepo.AdvanceParams{
		DocumentID:      doc.ID,
		ExpectedStage:   doc.CurrentStage,
		ExpectedVersion: doc.Version,
		ToStage:         types.StageError,
		AgentID:         d.cfg.AgentID,
		Message:         info.Message,
		ErrorInfo:       info,
	})
	if err != nil {
		return err
	}
	d.publish(doc.CurrentStage, updated, info.Message)
	d.log.Warn("document moved to error",
		"document_id", doc.ID,
		"failed_stage", target,
		"error", terr)
	return nil
}

func (d *Driver) publish(from types.Stage, doc *types.DocumentState, message string) {
	d.publisher.Publish(events.StageEvent{
		DocumentID: doc.ID,
		FromStage:  from,
		ToStage:    doc.CurrentStage,
		Version:    doc.Version,
		AgentID:    d.cfg.AgentID,
		Message:    message,
		OccurredAt: doc.LastUpdated,
	})
}

func runTransform(ctx context.Context, t StageTransform, doc *types.DocumentState) (res *TransformResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &pkgerrors.TransformFailure{
				Stage:   string(t.Stage()),
				Message: fmt.Sprintf("transform panicked: %v", r),
			}
		}
	}()
	return t.Process(ctx, doc)
}
