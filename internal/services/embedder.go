package services

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/yungbote/docflow-backend/internal/vector"
)

// HashingEmbedder is the built-in embedder: token feature hashing into a
// fixed-dimension unit vector. It needs no external model, is fully
// deterministic, and keeps the same contract as a real backend, so
// swapping one in later is a wiring change only.
type HashingEmbedder struct {
	identity string
	dim      int
}

func NewHashingEmbedder(identity string, dim int) *HashingEmbedder {
	if identity == "" {
		identity = "hashing@v1"
	}
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{identity: identity, dim: dim}
}

func (e *HashingEmbedder) ModelIdentity() string { return e.identity }
func (e *HashingEmbedder) Dimension() int        { return e.dim }

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, e.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		// Second hash bit decides sign, which keeps the expected value of
		// colliding tokens near zero.
		if (sum>>63)&1 == 1 {
			out[idx]--
		} else {
			out[idx]++
		}
	}
	return vector.NormalizeUnit(out), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
