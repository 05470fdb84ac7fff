package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/docflow-backend/internal/data/repos/memory"
	types "github.com/yungbote/docflow-backend/internal/domain"
	"github.com/yungbote/docflow-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pipeline"
)

func TestSplitFragmentsStableIdentity(t *testing.T) {
	docID := uuid.New()
	content := "First paragraph here.\n\n\n\nSecond one.\n\nThird."

	a := SplitFragments(docID, content)
	b := SplitFragments(docID, content)
	if len(a) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(a))
	}
	for i := range a {
		if a[i].Seq != i {
			t.Fatalf("fragment %d has seq %d", i, a[i].Seq)
		}
		if a[i].ID != b[i].ID {
			t.Fatalf("fragment %d id not stable across runs", i)
		}
	}

	other := SplitFragments(uuid.New(), content)
	if other[0].ID == a[0].ID {
		t.Fatalf("fragment ids must differ per document")
	}
}

func TestRegisterBuiltinTransformsCoversForwardStages(t *testing.T) {
	reg := pipeline.NewTransformRegistry()
	if err := RegisterBuiltinTransforms(reg, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, stage := range types.ForwardStages[1:] {
		if _, ok := reg.Lookup(stage); !ok {
			t.Fatalf("no transform registered for %s", stage)
		}
	}
}

func TestCaptureTransform(t *testing.T) {
	tr := &captureTransform{}
	doc := &types.DocumentState{
		ID:      uuid.New(),
		Content: "Lease expiry is wall-clock based. Holders must renew before the deadline.",
	}
	res, err := tr.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var payload struct {
		Summary   string `json:"summary"`
		WordCount int    `json:"word_count"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Summary != "Lease expiry is wall-clock based." {
		t.Fatalf("unexpected summary %q", payload.Summary)
	}
	if payload.WordCount != 11 {
		t.Fatalf("unexpected word count %d", payload.WordCount)
	}

	empty := &types.DocumentState{ID: uuid.New(), Content: "   "}
	_, err = tr.Process(context.Background(), empty)
	var tf *pkgerrors.TransformFailure
	if !errors.As(err, &tf) {
		t.Fatalf("empty content must fail the transform, got %v", err)
	}
}

func TestCrystallizeTransformWritesEmbeddings(t *testing.T) {
	store := memory.NewEmbeddingStore()
	embedder := NewHashingEmbedder("hashing@v1", 32)
	embeddings := NewEmbeddingService(store, embedder, testLogger(t))
	tr := &crystallizeTransform{embeddings: embeddings}

	content := "Leases protect documents.\n\nVersions guard against lost updates."
	doc := &types.DocumentState{
		ID:          uuid.New(),
		Content:     content,
		ContentHash: HashContent(content),
	}
	res, err := tr.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var payload struct {
		EmbeddedFragments int `json:"embedded_fragments"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.EmbeddedFragments != 2 {
		t.Fatalf("expected 2 fragments embedded, got %d", payload.EmbeddedFragments)
	}

	rec, err := store.GetDocumentEmbedding(dbctx.New(context.Background()), doc.ID, "hashing@v1")
	if err != nil {
		t.Fatalf("document embedding missing: %v", err)
	}
	if rec.ContentHash != doc.ContentHash {
		t.Fatalf("embedding hash does not match document")
	}
	frags, err := store.ListFragmentEmbeddings(dbctx.New(context.Background()), doc.ID, "hashing@v1")
	if err != nil {
		t.Fatalf("fragment embeddings: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragment embeddings, got %d", len(frags))
	}
}

func TestTopKeywordsDeterministic(t *testing.T) {
	content := strings.Repeat("alpha bridge ", 3) + "bridge gamma delta gamma"
	a := topKeywords(content, 3)
	b := topKeywords(content, 3)
	if len(a) != 3 {
		t.Fatalf("expected 3 keywords, got %v", a)
	}
	if a[0] != "bridge" {
		t.Fatalf("most frequent keyword should rank first, got %v", a)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("keyword order not deterministic: %v vs %v", a, b)
		}
	}
}
