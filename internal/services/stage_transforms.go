package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/docflow-backend/internal/domain"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
	"github.com/yungbote/docflow-backend/internal/pipeline"
)

// Built-in stage transforms. They are deliberately lightweight text
// heuristics: the pipeline contract (idempotent Process, result payload
// per stage) is what matters, and richer model-backed transforms drop in
// through the same registry.

// RegisterBuiltinTransforms fills the registry with one transform per
// forward stage past created.
func RegisterBuiltinTransforms(reg *pipeline.TransformRegistry, embeddings EmbeddingService) error {
	all := []pipeline.StageTransform{
		&captureTransform{},
		&contextualizeTransform{},
		&clarifyTransform{},
		&categorizeTransform{},
		&crystallizeTransform{embeddings: embeddings},
		&connectTransform{},
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// SplitFragments breaks content into paragraph fragments with stable
// ids, so re-running a stage reuses the same fragment identities.
func SplitFragments(documentID uuid.UUID, content string) []Fragment {
	paras := strings.Split(content, "\n\n")
	out := make([]Fragment, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		seq := len(out)
		name := fmt.Sprintf("%s/%d/%s", documentID, seq, HashContent(p))
		out = append(out, Fragment{
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
			Seq:     seq,
			Content: p,
		})
	}
	return out
}

func topKeywords(content string, k int) []string {
	counts := map[string]int{}
	for _, tok := range tokenize(content) {
		if len(tok) < 4 {
			continue
		}
		counts[tok]++
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > k {
		words = words[:k]
	}
	return words
}

type captureTransform struct{}

func (t *captureTransform) Stage() types.Stage { return types.StageCaptured }

func (t *captureTransform) Process(_ context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	body := strings.TrimSpace(doc.Content)
	if body == "" {
		return nil, &pkgerrors.TransformFailure{Stage: string(t.Stage()), Message: "document has no content"}
	}
	summary := body
	if idx := strings.IndexAny(summary, ".!?\n"); idx > 0 {
		summary = summary[:idx+1]
	}
	if len(summary) > 280 {
		summary = summary[:280]
	}
	payload, err := json.Marshal(map[string]any{
		"summary":    strings.TrimSpace(summary),
		"word_count": len(strings.Fields(body)),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}

type contextualizeTransform struct{}

func (t *contextualizeTransform) Stage() types.Stage { return types.StageContextualized }

func (t *contextualizeTransform) Process(_ context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	payload, err := json.Marshal(map[string]any{
		"keywords": topKeywords(doc.Content, 8),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}

type clarifyTransform struct{}

func (t *clarifyTransform) Stage() types.Stage { return types.StageClarified }

func (t *clarifyTransform) Process(_ context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	frags := SplitFragments(doc.ID, doc.Content)
	ids := make([]string, len(frags))
	for i, f := range frags {
		ids[i] = f.ID.String()
	}
	payload, err := json.Marshal(map[string]any{
		"fragment_count": len(frags),
		"fragment_ids":   ids,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}

type categorizeTransform struct{}

func (t *categorizeTransform) Stage() types.Stage { return types.StageCategorized }

func (t *categorizeTransform) Process(_ context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	// Categories reuse the strongest keywords as tags until a taxonomy
	// backend takes over.
	payload, err := json.Marshal(map[string]any{
		"categories": topKeywords(doc.Content, 3),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}

type crystallizeTransform struct {
	embeddings EmbeddingService
}

func (t *crystallizeTransform) Stage() types.Stage { return types.StageCrystallized }

func (t *crystallizeTransform) Process(ctx context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	if t.embeddings == nil {
		return nil, &pkgerrors.TransformFailure{Stage: string(t.Stage()), Message: "no embedding service configured"}
	}
	frags := SplitFragments(doc.ID, doc.Content)
	if err := t.embeddings.RefreshDocument(ctx, doc, frags); err != nil {
		return nil, &pkgerrors.TransformFailure{Stage: string(t.Stage()), Message: err.Error()}
	}
	payload, err := json.Marshal(map[string]any{
		"embedded_fragments": len(frags),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}

// connectTransform only marks arrival; the actual connection proposal
// runs in the driver's finalizer once the transition has committed.
type connectTransform struct{}

func (t *connectTransform) Stage() types.Stage { return types.StageConnected }

func (t *connectTransform) Process(_ context.Context, doc *types.DocumentState) (*pipeline.TransformResult, error) {
	payload, err := json.Marshal(map[string]any{
		"ready": true,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformResult{Payload: payload}, nil
}
