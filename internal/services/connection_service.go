package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	vectorsrepo "github.com/yungbote/docflow-backend/internal/data/repos/vectors"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/vector"
)

// ConnectionGraph mirrors discovered connections into a graph store.
// Mirroring is best effort and never blocks the relational commit.
type ConnectionGraph interface {
	UpsertConnections(ctx context.Context, sourceID uuid.UUID, entries []*types.ConnectionEntry) error
}

// ConfidenceFunc scores how trustworthy a proposed connection is, given
// its similarity. The default assigns full confidence.
type ConfidenceFunc func(similarity float64) float64

type ConnectionConfig struct {
	ModelIdentity string
	Threshold     float64
	MaxResults    int
	Relationship  string
	DiscoveredBy  string
	Confidence    ConfidenceFunc
}

func (c *ConnectionConfig) fill() {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.Relationship == "" {
		c.Relationship = "relates_to"
	}
	if c.DiscoveredBy == "" {
		c.DiscoveredBy = "connector"
	}
	if c.Confidence == nil {
		c.Confidence = func(float64) float64 { return 1.0 }
	}
}

type ConnectionService interface {
	FindSimilar(ctx context.Context, documentID uuid.UUID, threshold float64, maxResults int) ([]vector.Match, error)
	SearchByVector(ctx context.Context, query []float32, threshold float64, maxResults int) ([]vector.Match, error)
	ProposeConnections(ctx context.Context, documentID uuid.UUID) ([]*types.ConnectionEntry, error)
	ListConnections(ctx context.Context, documentID uuid.UUID) ([]*types.ConnectionEntry, error)
	MapDocuments(ctx context.Context) (*DocumentMap, error)
	DocumentConnected(ctx context.Context, doc *types.DocumentState) error
}

// DocumentMap is a clustered 2-D layout of every embedded document,
// meant for corpus overview views.
type DocumentMap struct {
	ModelIdentity string               `json:"model_identity"`
	Clusters      []DocumentMapCluster `json:"clusters"`
	Points        []DocumentMapPoint   `json:"points"`
}

type DocumentMapCluster struct {
	Index    int         `json:"index"`
	Cohesion float64     `json:"cohesion"`
	Members  []uuid.UUID `json:"members"`
}

type DocumentMapPoint struct {
	DocumentID uuid.UUID `json:"document_id"`
	Cluster    int       `json:"cluster"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
}

type connectionService struct {
	embeddings  vectorsrepo.EmbeddingRepo
	connections vectorsrepo.ConnectionRepo
	graph       ConnectionGraph
	log         *logger.Logger
	cfg         ConnectionConfig
}

func NewConnectionService(
	embeddings vectorsrepo.EmbeddingRepo,
	connections vectorsrepo.ConnectionRepo,
	graph ConnectionGraph,
	baseLog *logger.Logger,
	cfg ConnectionConfig,
) ConnectionService {
	cfg.fill()
	return &connectionService{
		embeddings:  embeddings,
		connections: connections,
		graph:       graph,
		log:         baseLog.With("service", "ConnectionService"),
		cfg:         cfg,
	}
}

// FindSimilar ranks every other document against the given one by cosine
// similarity of their document-level embeddings.
func (s *connectionService) FindSimilar(ctx context.Context, documentID uuid.UUID, threshold float64, maxResults int) ([]vector.Match, error) {
	dbc := dbctx.New(ctx)

	query, err := s.embeddings.GetDocumentEmbedding(dbc, documentID, s.cfg.ModelIdentity)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("document %s has no embedding for model %s: %w",
				documentID, s.cfg.ModelIdentity, pkgerrors.ErrNotFound)
		}
		return nil, err
	}

	all, err := s.embeddings.ListDocumentEmbeddings(dbc, s.cfg.ModelIdentity)
	if err != nil {
		return nil, err
	}
	candidates := make([]vector.Candidate, 0, len(all))
	for _, rec := range all {
		if rec.DocumentID == documentID {
			continue
		}
		candidates = append(candidates, vector.Candidate{ID: rec.DocumentID, Vec: rec.Vector.Slice()})
	}
	return vector.FindSimilar(query.Vector.Slice(), candidates, threshold, maxResults)
}

// SearchByVector ranks every document embedding against a caller-supplied
// query vector. No self-exclusion applies since the query has no owner.
func (s *connectionService) SearchByVector(ctx context.Context, query []float32, threshold float64, maxResults int) ([]vector.Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector: %w", pkgerrors.ErrInvalidArgument)
	}
	all, err := s.embeddings.ListDocumentEmbeddings(dbctx.New(ctx), s.cfg.ModelIdentity)
	if err != nil {
		return nil, err
	}
	candidates := make([]vector.Candidate, 0, len(all))
	for _, rec := range all {
		candidates = append(candidates, vector.Candidate{ID: rec.DocumentID, Vec: rec.Vector.Slice()})
	}
	return vector.FindSimilar(query, candidates, threshold, maxResults)
}

// ProposeConnections recomputes and stores the document's outgoing edge
// set from its current similarity neighborhood.
func (s *connectionService) ProposeConnections(ctx context.Context, documentID uuid.UUID) ([]*types.ConnectionEntry, error) {
	matches, err := s.FindSimilar(ctx, documentID, s.cfg.Threshold, s.cfg.MaxResults)
	if err != nil {
		return nil, err
	}

	entries := make([]*types.ConnectionEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, &types.ConnectionEntry{
			SourceDocumentID: documentID,
			TargetDocumentID: m.ID,
			Relationship:     s.cfg.Relationship,
			Strength:         m.Similarity,
			Confidence:       s.cfg.Confidence(m.Similarity),
			Bidirectional:    true,
			DiscoveredBy:     s.cfg.DiscoveredBy,
		})
	}

	dbc := dbctx.New(ctx)
	if err := s.connections.ReplaceForSource(dbc, documentID, entries); err != nil {
		return nil, err
	}
	if s.graph != nil {
		if err := s.graph.UpsertConnections(ctx, documentID, entries); err != nil {
			s.log.Warn("graph mirror failed", "document_id", documentID, "error", err)
		}
	}
	s.log.Info("connections proposed", "document_id", documentID, "count", len(entries))
	return entries, nil
}

func (s *connectionService) ListConnections(ctx context.Context, documentID uuid.UUID) ([]*types.ConnectionEntry, error) {
	return s.connections.ListBySource(dbctx.New(ctx), documentID)
}

// MapDocuments clusters all document-level embeddings and lays them out
// on the first two principal components.
func (s *connectionService) MapDocuments(ctx context.Context) (*DocumentMap, error) {
	all, err := s.embeddings.ListDocumentEmbeddings(dbctx.New(ctx), s.cfg.ModelIdentity)
	if err != nil {
		return nil, err
	}

	candidates := make([]vector.Candidate, 0, len(all))
	vecs := make([][]float32, 0, len(all))
	for _, rec := range all {
		candidates = append(candidates, vector.Candidate{ID: rec.DocumentID, Vec: rec.Vector.Slice()})
		vecs = append(vecs, rec.Vector.Slice())
	}

	out := &DocumentMap{ModelIdentity: s.cfg.ModelIdentity}
	if len(candidates) == 0 {
		return out, nil
	}

	clusters := vector.KMeans(candidates, vector.ChooseK(len(candidates), s.cfg.MaxResults))
	clusterOf := make(map[uuid.UUID]int, len(candidates))
	for i, cl := range clusters {
		members := make([]uuid.UUID, 0, len(cl.Members))
		for _, m := range cl.Members {
			members = append(members, m.ID)
			clusterOf[m.ID] = i
		}
		out.Clusters = append(out.Clusters, DocumentMapCluster{
			Index:    i,
			Cohesion: vector.Cohesion(cl),
			Members:  members,
		})
	}

	points := vector.ProjectTo2D(vecs)
	out.Points = make([]DocumentMapPoint, len(candidates))
	for i, cand := range candidates {
		out.Points[i] = DocumentMapPoint{
			DocumentID: cand.ID,
			Cluster:    clusterOf[cand.ID],
			X:          points[i].X,
			Y:          points[i].Y,
		}
	}
	return out, nil
}

// DocumentConnected is the pipeline finalizer hook: reaching the
// connected stage triggers a connection proposal pass.
func (s *connectionService) DocumentConnected(ctx context.Context, doc *types.DocumentState) error {
	_, err := s.ProposeConnections(ctx, doc.ID)
	if isNotFound(err) {
		// No embedding yet; the next refresh will reconnect it.
		s.log.Warn("connect skipped, no embedding", "document_id", doc.ID)
		return nil
	}
	return err
}
