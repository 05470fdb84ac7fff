package vectors

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/docflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

func TestEmbeddingRepo_PutOverwrites(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewEmbeddingRepo(db, logg)

	docID := uuid.New()
	first := &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "test-model@v1",
		Dimension:     3,
		ContentHash:   "h1",
		Vector:        pgvector.NewVector([]float32{1, 0, 0}),
	}
	if err := repo.Put(dbc, first); err != nil {
		t.Fatalf("put: %v", err)
	}

	second := &types.EmbeddingRecord{
		DocumentID:    docID,
		ModelIdentity: "test-model@v1",
		Dimension:     3,
		ContentHash:   "h2",
		Vector:        pgvector.NewVector([]float32{0, 1, 0}),
	}
	if err := repo.Put(dbc, second); err != nil {
		t.Fatalf("overwrite put: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("overwrite should reuse the existing row, got %s vs %s", second.ID, first.ID)
	}

	got, err := repo.GetDocumentEmbedding(dbc, docID, "test-model@v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContentHash != "h2" {
		t.Fatalf("expected overwritten hash h2, got %q", got.ContentHash)
	}
	vec := got.Vector.Slice()
	if len(vec) != 3 || vec[1] != 1 {
		t.Fatalf("unexpected vector after overwrite: %v", vec)
	}
}

func TestEmbeddingRepo_FragmentsOrderedBySeq(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewEmbeddingRepo(db, logg)

	docID := uuid.New()
	for _, seq := range []int{2, 0, 1} {
		fragID := uuid.New()
		rec := &types.EmbeddingRecord{
			DocumentID:    docID,
			FragmentID:    &fragID,
			Seq:           seq,
			ModelIdentity: "test-model@v1",
			Dimension:     2,
			Vector:        pgvector.NewVector([]float32{float32(seq), 1}),
		}
		if err := repo.Put(dbc, rec); err != nil {
			t.Fatalf("put fragment seq=%d: %v", seq, err)
		}
	}

	frags, err := repo.ListFragmentEmbeddings(dbc, docID, "test-model@v1")
	if err != nil {
		t.Fatalf("list fragments: %v", err)
	}
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}
	for i, f := range frags {
		if f.Seq != i {
			t.Fatalf("fragments out of order at %d: seq=%d", i, f.Seq)
		}
	}

	// Fragment rows never surface as the document-level embedding.
	if _, err := repo.GetDocumentEmbedding(dbc, docID, "test-model@v1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for document embedding, got %v", err)
	}

	if err := repo.DeleteForDocument(dbc, docID); err != nil {
		t.Fatalf("delete for document: %v", err)
	}
	frags, err = repo.ListFragmentEmbeddings(dbc, docID, "test-model@v1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(frags) != 0 {
		t.Fatalf("expected no fragments after delete, got %d", len(frags))
	}
}

func TestConnectionRepo_ReplaceForSource(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewConnectionRepo(db, logg)

	source := uuid.New()
	a, b := uuid.New(), uuid.New()
	if err := repo.ReplaceForSource(dbc, source, []*types.ConnectionEntry{
		{TargetDocumentID: a, Relationship: "relates_to", Strength: 0.9, Confidence: 1.0, DiscoveredBy: "connector"},
		{TargetDocumentID: b, Relationship: "relates_to", Strength: 0.6, Confidence: 1.0, DiscoveredBy: "connector"},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	entries, err := repo.ListBySource(dbc, source)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Strength < entries[1].Strength {
		t.Fatalf("entries should come back strongest first")
	}

	// Replacing with one entry drops the other.
	if err := repo.ReplaceForSource(dbc, source, []*types.ConnectionEntry{
		{TargetDocumentID: b, Relationship: "relates_to", Strength: 0.7, Confidence: 1.0, DiscoveredBy: "connector"},
	}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	entries, err = repo.ListBySource(dbc, source)
	if err != nil {
		t.Fatalf("list after replace: %v", err)
	}
	if len(entries) != 1 || entries[0].TargetDocumentID != b {
		t.Fatalf("expected only target %s, got %+v", b, entries)
	}

	incoming, err := repo.ListByTarget(dbc, b)
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(incoming) != 1 || incoming[0].SourceDocumentID != source {
		t.Fatalf("expected one incoming edge from %s", source)
	}
}
