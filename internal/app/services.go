package app

import (
	"fmt"

	"github.com/yungbote/docflow-backend/internal/events"
	"github.com/yungbote/docflow-backend/internal/pipeline"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/services"
	"github.com/yungbote/docflow-backend/internal/sse"
)

type Services struct {
	Document   services.DocumentService
	Embedding  services.EmbeddingService
	Connection services.ConnectionService

	Registry *pipeline.TransformRegistry
	Driver   *pipeline.Driver
	Worker   *pipeline.Worker
}

// hubPublisher feeds stage events straight into the local SSE hub. Used
// when no redis bus is configured; with a bus the hub is fed by the
// forwarder instead so events from other processes fan out too.
type hubPublisher struct {
	hub *sse.Hub
}

func (p *hubPublisher) Publish(ev events.StageEvent) {
	p.hub.Broadcast(ev)
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *sse.Hub) (Services, error) {
	log.Info("Wiring services...")

	var publisher events.Publisher
	if clients.EventBus != nil {
		publisher = clients.EventBus
	} else if hub != nil {
		publisher = &hubPublisher{hub: hub}
	} else {
		publisher = events.Nop{}
	}

	documentService := services.NewDocumentService(repos.DocumentState, repos.Transition, publisher, log)

	embedder := services.NewHashingEmbedder(cfg.ModelIdentity, cfg.VectorDim)
	embeddingService := services.NewEmbeddingService(repos.Embedding, embedder, log)

	var connGraph services.ConnectionGraph
	if clients.ConnectionGraph != nil {
		connGraph = clients.ConnectionGraph
	}
	connectionService := services.NewConnectionService(repos.Embedding, repos.Connection, connGraph, log, services.ConnectionConfig{
		ModelIdentity: cfg.ModelIdentity,
		Threshold:     cfg.SimilarityThreshold,
		MaxResults:    cfg.MaxResults,
	})

	var policy *pipeline.AccessPolicy
	if cfg.AccessPolicyPath != "" {
		p, err := pipeline.LoadAccessPolicy(cfg.AccessPolicyPath)
		if err != nil {
			return Services{}, fmt.Errorf("load access policy: %w", err)
		}
		policy = p
	}

	registry := pipeline.NewTransformRegistry()
	if err := services.RegisterBuiltinTransforms(registry, embeddingService); err != nil {
		return Services{}, fmt.Errorf("register stage transforms: %w", err)
	}

	driver := pipeline.NewDriver(
		repos.DocumentState,
		repos.Lease,
		registry,
		policy,
		publisher,
		connectionService,
		log,
		pipeline.DriverConfig{
			AgentID:         cfg.AgentID,
			LeaseTTL:        cfg.LeaseTTL,
			AcquireAttempts: cfg.AcquireAttempts,
			AcquireBackoff:  cfg.AcquireBackoff,
			BatchSize:       cfg.BatchSize,
		},
	)

	worker := pipeline.NewWorker(driver, log, cfg.WorkerConcurrency, cfg.WorkerInterval)

	return Services{
		Document:   documentService,
		Embedding:  embeddingService,
		Connection: connectionService,
		Registry:   registry,
		Driver:     driver,
		Worker:     worker,
	}, nil
}
