// Package vector holds the pure math behind the connection engine:
// cosine similarity, the candidate ranking used to propose connections,
// and the clustering/projection helpers built on top of it.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

// Cosine returns the cosine similarity of two vectors of equal dimension.
// A zero vector has no direction, so any comparison against one is 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("cosine over %d vs %d dims: %w", len(a), len(b), pkgerrors.ErrDimensionMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na <= 0 || nb <= 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func NormalizeUnit(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum <= 0 {
		return v
	}
	den := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * den
	}
	return out
}

// Candidate is one vector under consideration for similarity ranking.
type Candidate struct {
	ID  uuid.UUID
	Vec []float32
}

// Match is a candidate that cleared the threshold.
type Match struct {
	ID         uuid.UUID
	Similarity float64
}

// FindSimilar ranks candidates against the query by cosine similarity.
// Only candidates strictly above threshold are returned, strongest first;
// equal scores keep their input order. maxResults <= 0 means unlimited.
func FindSimilar(query []float32, candidates []Candidate, threshold float64, maxResults int) ([]Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector: %w", pkgerrors.ErrInvalidArgument)
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		s, err := Cosine(query, c.Vec)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		if s > threshold {
			matches = append(matches, Match{ID: c.ID, Similarity: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

func meanVector(vs [][]float32) ([]float32, bool) {
	if len(vs) == 0 {
		return nil, false
	}
	var dim int
	for _, v := range vs {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return nil, false
	}
	sum := make([]float64, dim)
	n := 0
	for _, v := range vs {
		if len(v) != dim {
			continue
		}
		for i := 0; i < dim; i++ {
			sum[i] += float64(v[i])
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = float32(sum[i] / float64(n))
	}
	return out, true
}
