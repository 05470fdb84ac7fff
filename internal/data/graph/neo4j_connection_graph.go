// Package graph mirrors the relational connection table into neo4j so
// neighborhoods can be traversed without similarity recomputation.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/platform/neo4jdb"
)

type ConnectionGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewConnectionGraph(client *neo4jdb.Client, baseLog *logger.Logger) *ConnectionGraph {
	return &ConnectionGraph{
		client: client,
		log:    baseLog.With("component", "ConnectionGraph"),
	}
}

// UpsertConnections replaces the source document's outgoing CONNECTED_TO
// edges with the given set, mirroring the relational replace.
func (g *ConnectionGraph) UpsertConnections(ctx context.Context, sourceID uuid.UUID, entries []*types.ConnectionEntry) error {
	if g == nil || g.client == nil || g.client.Driver == nil {
		return nil
	}
	if sourceID == uuid.Nil {
		return fmt.Errorf("neo4j connection sync: missing source id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	rels := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.TargetDocumentID == uuid.Nil {
			continue
		}
		rels = append(rels, map[string]any{
			"id":            e.ID.String(),
			"target_id":     e.TargetDocumentID.String(),
			"relationship":  e.Relationship,
			"strength":      e.Strength,
			"confidence":    e.Confidence,
			"bidirectional": e.Bidirectional,
			"discovered_by": e.DiscoveredBy,
			"synced_at":     now,
		})
	}

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best-effort; restricted users may not create them.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`, nil); err != nil {
		g.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (s:Document {id: $source_id})
WITH s
OPTIONAL MATCH (s)-[e:CONNECTED_TO]->()
DELETE e
`, map[string]any{"source_id": sourceID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(rels) > 0 {
			res, err = tx.Run(ctx, `
UNWIND $rels AS r
MATCH (s:Document {id: $source_id})
MERGE (t:Document {id: r.target_id})
MERGE (s)-[e:CONNECTED_TO]->(t)
SET e.id = r.id,
    e.relationship = r.relationship,
    e.strength = r.strength,
    e.confidence = r.confidence,
    e.bidirectional = r.bidirectional,
    e.discovered_by = r.discovered_by,
    e.synced_at = r.synced_at
`, map[string]any{"source_id": sourceID.String(), "rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j connection sync: %w", err)
	}
	g.log.Debug("connections mirrored", "source_id", sourceID, "count", len(rels))
	return nil
}
