package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tc := range cases {
		got, err := Cosine(tc.a, tc.b)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !almostEqual(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	if _, err := Cosine([]float32{1, 2}, []float32{1, 2, 3}); !errors.Is(err, pkgerrors.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFindSimilar(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: c, Vec: NormalizeUnit([]float32{0.3, 0.9539392})},
		{ID: a, Vec: NormalizeUnit([]float32{0.9, 0.4358899})},
		{ID: b, Vec: NormalizeUnit([]float32{0.6, 0.8})},
	}

	matches, err := FindSimilar(query, candidates, 0.5, 10)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above 0.5, got %d", len(matches))
	}
	if matches[0].ID != a || !almostEqual(matches[0].Similarity, 0.9) {
		t.Fatalf("expected strongest match %s at 0.9, got %s at %v", a, matches[0].ID, matches[0].Similarity)
	}
	if matches[1].ID != b || !almostEqual(matches[1].Similarity, 0.6) {
		t.Fatalf("expected second match %s at 0.6, got %s at %v", b, matches[1].ID, matches[1].Similarity)
	}
}

func TestFindSimilarThresholdIsStrict(t *testing.T) {
	id := uuid.New()
	matches, err := FindSimilar([]float32{1, 0}, []Candidate{{ID: id, Vec: []float32{1, 0}}}, 1.0, 10)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("score equal to threshold must not match, got %d results", len(matches))
	}
}

func TestFindSimilarTieKeepsInputOrder(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	candidates := []Candidate{
		{ID: first, Vec: []float32{2, 0}},
		{ID: second, Vec: []float32{5, 0}},
	}
	matches, err := FindSimilar([]float32{1, 0}, candidates, 0.0, 10)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != first || matches[1].ID != second {
		t.Fatalf("equal scores must keep input order")
	}
}

func TestFindSimilarCapsResults(t *testing.T) {
	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = Candidate{ID: uuid.New(), Vec: []float32{1, float32(i) * 0.01}}
	}
	matches, err := FindSimilar([]float32{1, 0}, candidates, 0.0, 3)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected capped 3 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("matches not sorted non-increasing at %d", i)
		}
	}
}

func TestFindSimilarDimensionMismatch(t *testing.T) {
	_, err := FindSimilar([]float32{1, 0}, []Candidate{{ID: uuid.New(), Vec: []float32{1, 0, 0}}}, 0.5, 10)
	if !errors.Is(err, pkgerrors.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestKMeansDeterministic(t *testing.T) {
	candidates := []Candidate{
		{ID: uuid.New(), Vec: []float32{1, 0, 0}},
		{ID: uuid.New(), Vec: []float32{0.99, 0.01, 0}},
		{ID: uuid.New(), Vec: []float32{0, 1, 0}},
		{ID: uuid.New(), Vec: []float32{0.01, 0.99, 0}},
		{ID: uuid.New(), Vec: []float32{0, 0, 1}},
	}

	first := KMeans(candidates, 3)
	second := KMeans(candidates, 3)
	if len(first) != len(second) {
		t.Fatalf("runs disagree on cluster count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Members) != len(second[i].Members) {
			t.Fatalf("runs disagree on cluster %d size", i)
		}
		for j := range first[i].Members {
			if first[i].Members[j].ID != second[i].Members[j].ID {
				t.Fatalf("runs disagree on cluster %d member %d", i, j)
			}
		}
	}

	total := 0
	for _, cl := range first {
		total += len(cl.Members)
		if Cohesion(cl) <= 0 {
			t.Fatalf("cluster with members should have positive cohesion")
		}
	}
	if total != len(candidates) {
		t.Fatalf("every candidate must land in a cluster: %d of %d", total, len(candidates))
	}
}

func TestChooseK(t *testing.T) {
	if k := ChooseK(0, 0); k != 1 {
		t.Fatalf("n=0: got %d", k)
	}
	if k := ChooseK(1, 0); k != 1 {
		t.Fatalf("n=1: got %d", k)
	}
	if k := ChooseK(9, 0); k != 3 {
		t.Fatalf("n=9: got %d, want 3", k)
	}
	if k := ChooseK(100, 5); k != 5 {
		t.Fatalf("n=100 capped at 5: got %d", k)
	}
	if k := ChooseK(2, 10); k != 2 {
		t.Fatalf("n=2: got %d", k)
	}
}

func TestProjectTo2DSeparatesGroups(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0}, {0.98, 0.02, 0},
		{0, 0, 1}, {0.02, 0, 0.98},
	}
	pts := ProjectTo2D(vecs)
	if len(pts) != 4 {
		t.Fatalf("expected a point per vector, got %d", len(pts))
	}
	// The two groups should land on opposite sides of PC1.
	if (pts[0].X > 0) == (pts[2].X > 0) {
		t.Fatalf("distinct groups should separate on the first component: %+v", pts)
	}
	if (pts[0].X > 0) != (pts[1].X > 0) {
		t.Fatalf("near-identical vectors should land on the same side: %+v", pts)
	}
}

func TestProjectTo2DDegenerate(t *testing.T) {
	pts := ProjectTo2D([][]float32{{1, 2, 3}})
	if len(pts) != 1 || pts[0].X != 0 || pts[0].Y != 0 {
		t.Fatalf("single vector should project to origin, got %+v", pts)
	}
}
