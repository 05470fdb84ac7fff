package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yungbote/docflow-backend/internal/clients/redis"
	"github.com/yungbote/docflow-backend/internal/data/graph"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/platform/neo4jdb"
)

type Clients struct {
	// Nil when REDIS_ADDR is unset; the app then broadcasts stage events
	// to local SSE clients only.
	EventBus *redis.EventBus

	// Nil when NEO4J_URI is unset; connection mirroring is skipped.
	Neo4j           *neo4jdb.Client
	ConnectionGraph *graph.ConnectionGraph
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var bus *redis.EventBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := redis.NewEventBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		bus = b
	}

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		if bus != nil {
			_ = bus.Close()
		}
		return Clients{}, fmt.Errorf("init neo4j client: %w", err)
	}
	var connGraph *graph.ConnectionGraph
	if neo != nil {
		connGraph = graph.NewConnectionGraph(neo, log)
	}

	return Clients{
		EventBus:        bus,
		Neo4j:           neo,
		ConnectionGraph: connGraph,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.EventBus != nil {
		_ = c.EventBus.Close()
	}
	if c.Neo4j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Neo4j.Close(ctx)
		cancel()
	}
}
