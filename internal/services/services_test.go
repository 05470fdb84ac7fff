package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/docflow-backend/internal/data/repos/memory"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	logg, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logg
}

func TestDocumentServiceIngest(t *testing.T) {
	transitions := memory.NewTransitionStore()
	docs := memory.NewDocumentStateStore(transitions)
	svc := NewDocumentService(docs, transitions, nil, testLogger(t))
	ctx := context.Background()

	doc, reopened, err := svc.Ingest(ctx, nil, "first body", nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if reopened {
		t.Fatalf("fresh ingest must not report reopen")
	}
	if doc.CurrentStage != types.StageCreated || doc.Version != 1 {
		t.Fatalf("unexpected initial state %q v%d", doc.CurrentStage, doc.Version)
	}
	if doc.ContentHash != HashContent("first body") {
		t.Fatalf("content hash not recorded")
	}

	// Same content, same id: no-op.
	same, reopened, err := svc.Ingest(ctx, &doc.ID, "first body", nil)
	if err != nil {
		t.Fatalf("re-ingest same content: %v", err)
	}
	if reopened || same.Version != 1 {
		t.Fatalf("unchanged content must not move the document, got v%d reopened=%v", same.Version, reopened)
	}

	// Changed content: reopen at created with a version bump.
	changed, reopened, err := svc.Ingest(ctx, &doc.ID, "second body", nil)
	if err != nil {
		t.Fatalf("re-ingest changed content: %v", err)
	}
	if !reopened {
		t.Fatalf("changed content should reopen")
	}
	if changed.Version != 2 || changed.CurrentStage != types.StageCreated {
		t.Fatalf("unexpected reopened state %q v%d", changed.CurrentStage, changed.Version)
	}

	if _, _, err := svc.Ingest(ctx, nil, "   ", nil); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("blank content should be rejected, got %v", err)
	}
}

func TestDocumentServiceAdvanceRequiresVersion(t *testing.T) {
	transitions := memory.NewTransitionStore()
	docs := memory.NewDocumentStateStore(transitions)
	svc := NewDocumentService(docs, transitions, nil, testLogger(t))
	ctx := context.Background()

	doc, _, err := svc.Ingest(ctx, nil, "body", nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if _, err := svc.Advance(ctx, AdvanceInput{
		DocumentID:    doc.ID,
		ExpectedStage: types.StageCreated,
		ToStage:       types.StageCaptured,
		AgentID:       "api",
	}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("advance without version must be rejected, got %v", err)
	}

	updated, err := svc.Advance(ctx, AdvanceInput{
		DocumentID:      doc.ID,
		ExpectedStage:   types.StageCreated,
		ExpectedVersion: 1,
		ToStage:         types.StageCaptured,
		AgentID:         "api",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
}

type fakeEmbedder struct {
	identity string
	dim      int
	vectors  map[string][]float32
	fail     error
}

func (f *fakeEmbedder) ModelIdentity() string { return f.identity }
func (f *fakeEmbedder) Dimension() int        { return f.dim }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	out := make([]float32, f.dim)
	out[0] = 1
	return out, nil
}

func TestEmbeddingServiceDimensionCheck(t *testing.T) {
	store := memory.NewEmbeddingStore()
	embedder := &fakeEmbedder{identity: "test-model@v1", dim: 3}
	svc := NewEmbeddingService(store, embedder, testLogger(t))
	ctx := context.Background()

	docID := uuid.New()
	if err := svc.Put(ctx, &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "test-model@v1",
		Vector:        pgvector.NewVector([]float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := svc.Put(ctx, &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "test-model@v1",
		Vector:        pgvector.NewVector([]float32{1, 0}),
	})
	if !errors.Is(err, pkgerrors.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	// A different model identity pins its own dimension.
	if err := svc.Put(ctx, &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "other-model@v1",
		Vector:        pgvector.NewVector([]float32{1, 0}),
	}); err != nil {
		t.Fatalf("put other model: %v", err)
	}
}

func TestEmbeddingServiceRefreshDocument(t *testing.T) {
	store := memory.NewEmbeddingStore()
	embedder := &fakeEmbedder{
		identity: "test-model@v1",
		dim:      3,
		vectors: map[string][]float32{
			"whole doc": {1, 0, 0},
			"frag a":    {0, 1, 0},
			"frag b":    {0, 0, 1},
		},
	}
	svc := NewEmbeddingService(store, embedder, testLogger(t))
	ctx := context.Background()

	doc := &types.DocumentState{ID: uuid.New(), Content: "whole doc", ContentHash: HashContent("whole doc")}
	frags := []Fragment{
		{ID: uuid.New(), Seq: 0, Content: "frag a"},
		{ID: uuid.New(), Seq: 1, Content: "frag b"},
	}
	if err := svc.RefreshDocument(ctx, doc, frags); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	needs, err := svc.NeedsRefresh(ctx, doc, "test-model@v1")
	if err != nil {
		t.Fatalf("needs refresh: %v", err)
	}
	if needs {
		t.Fatalf("freshly embedded document should not need refresh")
	}

	stored, err := svc.ListFragmentEmbeddings(ctx, doc.ID, "test-model@v1")
	if err != nil {
		t.Fatalf("list fragments: %v", err)
	}
	if len(stored) != 2 || stored[0].Seq != 0 || stored[1].Seq != 1 {
		t.Fatalf("unexpected fragment rows: %+v", stored)
	}

	// Content drift flips the refresh flag.
	doc.Content = "whole doc v2"
	doc.ContentHash = HashContent(doc.Content)
	needs, err = svc.NeedsRefresh(ctx, doc, "test-model@v1")
	if err != nil {
		t.Fatalf("needs refresh after change: %v", err)
	}
	if !needs {
		t.Fatalf("changed content should need refresh")
	}
}

func TestEmbeddingServiceRefreshAbortsOnFailure(t *testing.T) {
	store := memory.NewEmbeddingStore()
	embedder := &fakeEmbedder{identity: "test-model@v1", dim: 3, fail: fmt.Errorf("backend down")}
	svc := NewEmbeddingService(store, embedder, testLogger(t))

	doc := &types.DocumentState{ID: uuid.New(), Content: "x", ContentHash: "h"}
	if err := svc.RefreshDocument(context.Background(), doc, nil); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if _, err := store.GetDocumentEmbedding(dbctx.New(context.Background()), doc.ID, "test-model@v1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("failed refresh must not write, got %v", err)
	}
}

func seedEmbedding(t *testing.T, store *memory.EmbeddingStore, docID uuid.UUID, vec []float32) {
	t.Helper()
	if err := store.Put(dbctx.New(context.Background()), &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "test-model@v1",
		Dimension:     len(vec),
		Vector:        pgvector.NewVector(vec),
	}); err != nil {
		t.Fatalf("seed embedding: %v", err)
	}
}

func TestConnectionServicePropose(t *testing.T) {
	embeddings := memory.NewEmbeddingStore()
	connections := memory.NewConnectionStore()
	svc := NewConnectionService(embeddings, connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
		Threshold:     0.5,
		MaxResults:    10,
	})
	ctx := context.Background()

	source := uuid.New()
	strong, mid, weak := uuid.New(), uuid.New(), uuid.New()
	seedEmbedding(t, embeddings, source, []float32{1, 0})
	seedEmbedding(t, embeddings, strong, []float32{0.9, 0.4358899})
	seedEmbedding(t, embeddings, mid, []float32{0.6, 0.8})
	seedEmbedding(t, embeddings, weak, []float32{0.3, 0.9539392})

	entries, err := svc.ProposeConnections(ctx, source)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 connections above 0.5, got %d", len(entries))
	}
	if entries[0].TargetDocumentID != strong || entries[1].TargetDocumentID != mid {
		t.Fatalf("connections out of order: %+v", entries)
	}
	if entries[0].Strength < entries[1].Strength {
		t.Fatalf("strength should be non-increasing")
	}
	for _, e := range entries {
		if e.TargetDocumentID == source {
			t.Fatalf("self connection proposed")
		}
		if e.Confidence != 1.0 {
			t.Fatalf("default confidence should be 1.0, got %v", e.Confidence)
		}
		if e.Relationship != "relates_to" {
			t.Fatalf("default relationship should be relates_to, got %q", e.Relationship)
		}
	}

	listed, err := svc.ListConnections(ctx, source)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected stored connections, got %d", len(listed))
	}
}

func TestConnectionServiceSearchByVector(t *testing.T) {
	embeddings := memory.NewEmbeddingStore()
	connections := memory.NewConnectionStore()
	svc := NewConnectionService(embeddings, connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
	})
	ctx := context.Background()

	near, far := uuid.New(), uuid.New()
	seedEmbedding(t, embeddings, near, []float32{1, 0})
	seedEmbedding(t, embeddings, far, []float32{0, 1})

	matches, err := svc.SearchByVector(ctx, []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != near {
		t.Fatalf("expected only the aligned document, got %+v", matches)
	}

	if _, err := svc.SearchByVector(ctx, nil, 0.5, 10); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("empty query must be rejected, got %v", err)
	}
}

func TestConnectionServiceConfidenceOverride(t *testing.T) {
	embeddings := memory.NewEmbeddingStore()
	connections := memory.NewConnectionStore()
	svc := NewConnectionService(embeddings, connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
		Threshold:     0.1,
		Confidence:    func(sim float64) float64 { return sim / 2 },
	})
	ctx := context.Background()

	source, other := uuid.New(), uuid.New()
	seedEmbedding(t, embeddings, source, []float32{1, 0})
	seedEmbedding(t, embeddings, other, []float32{1, 0})

	entries, err := svc.ProposeConnections(ctx, source)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(entries))
	}
	if entries[0].Confidence != entries[0].Strength/2 {
		t.Fatalf("confidence override not applied: %+v", entries[0])
	}
}

func TestConnectionServiceMapDocuments(t *testing.T) {
	embeddings := memory.NewEmbeddingStore()
	connections := memory.NewConnectionStore()
	svc := NewConnectionService(embeddings, connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
		Threshold:     0.5,
	})
	ctx := context.Background()

	// Two tight groups on opposite axes.
	ids := make([]uuid.UUID, 6)
	vecs := [][]float32{
		{1, 0, 0}, {0.99, 0.1, 0}, {0.98, 0.15, 0.05},
		{0, 1, 0}, {0.1, 0.99, 0}, {0.05, 0.98, 0.15},
	}
	for i, vec := range vecs {
		ids[i] = uuid.New()
		seedEmbedding(t, embeddings, ids[i], vec)
	}

	docMap, err := svc.MapDocuments(ctx)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if docMap.ModelIdentity != "test-model@v1" {
		t.Fatalf("unexpected model identity %q", docMap.ModelIdentity)
	}
	if len(docMap.Points) != len(ids) {
		t.Fatalf("expected %d points, got %d", len(ids), len(docMap.Points))
	}

	total := 0
	for _, cl := range docMap.Clusters {
		if len(cl.Members) == 0 {
			t.Fatalf("empty cluster in map output")
		}
		if cl.Cohesion <= 0 {
			t.Fatalf("cluster %d has non-positive cohesion %v", cl.Index, cl.Cohesion)
		}
		total += len(cl.Members)
	}
	if total != len(ids) {
		t.Fatalf("cluster membership covers %d of %d documents", total, len(ids))
	}

	// Same-group documents share a cluster.
	byDoc := map[uuid.UUID]int{}
	for _, p := range docMap.Points {
		byDoc[p.DocumentID] = p.Cluster
	}
	if byDoc[ids[0]] != byDoc[ids[1]] || byDoc[ids[3]] != byDoc[ids[4]] {
		t.Fatalf("near-identical documents split across clusters: %v", byDoc)
	}
	if byDoc[ids[0]] == byDoc[ids[3]] {
		t.Fatalf("orthogonal groups collapsed into one cluster")
	}

	empty := NewConnectionService(memory.NewEmbeddingStore(), connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
	})
	emptyMap, err := empty.MapDocuments(ctx)
	if err != nil {
		t.Fatalf("empty map: %v", err)
	}
	if len(emptyMap.Points) != 0 || len(emptyMap.Clusters) != 0 {
		t.Fatalf("empty corpus should yield an empty map")
	}
}

func TestConnectionServiceFinalizerToleratesMissingEmbedding(t *testing.T) {
	embeddings := memory.NewEmbeddingStore()
	connections := memory.NewConnectionStore()
	svc := NewConnectionService(embeddings, connections, nil, testLogger(t), ConnectionConfig{
		ModelIdentity: "test-model@v1",
		Threshold:     0.5,
	})

	doc := &types.DocumentState{ID: uuid.New()}
	if err := svc.DocumentConnected(context.Background(), doc); err != nil {
		t.Fatalf("finalizer should tolerate missing embedding, got %v", err)
	}
}
