package vector

import "math"

// Cluster is one k-means cell: its centroid plus member candidates.
type Cluster struct {
	Centroid []float32
	Members  []Candidate
}

// ChooseK picks a cluster count near sqrt(n), clamped to [2, maxClusters]
// and never above n.
func ChooseK(n, maxClusters int) int {
	if n <= 1 {
		return 1
	}
	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 2 {
		k = 2
	}
	if maxClusters > 0 && k > maxClusters {
		k = maxClusters
	}
	if k > n {
		k = n
	}
	return k
}

func cosineOrZero(a, b []float32) float64 {
	s, err := Cosine(a, b)
	if err != nil {
		return 0
	}
	return s
}

// KMeans clusters candidates under cosine distance. Seeding is
// deterministic: it starts from the first candidate and repeatedly takes
// the one farthest from every centroid chosen so far, so the same input
// always yields the same clustering.
func KMeans(candidates []Candidate, k int) []Cluster {
	if len(candidates) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	centroids := make([][]float32, 0, k)
	centroids = append(centroids, candidates[0].Vec)
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i := range candidates {
			d := 1.0
			for _, c := range centroids {
				dist := 1.0 - cosineOrZero(candidates[i].Vec, c)
				if dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, candidates[bestIdx].Vec)
	}

	assign := make([]int, len(candidates))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < 10; iter++ {
		changed := false
		clusters := make([]Cluster, k)
		for i := range clusters {
			clusters[i].Centroid = centroids[i]
		}

		for i, cand := range candidates {
			best := 0
			bestScore := -1.0
			for c := 0; c < k; c++ {
				s := cosineOrZero(cand.Vec, centroids[c])
				if s > bestScore {
					bestScore = s
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			clusters[best].Members = append(clusters[best].Members, cand)
		}

		for i := 0; i < k; i++ {
			if len(clusters[i].Members) == 0 {
				continue
			}
			tmp := make([][]float32, 0, len(clusters[i].Members))
			for _, m := range clusters[i].Members {
				tmp = append(tmp, m.Vec)
			}
			if mean, ok := meanVector(tmp); ok && len(mean) > 0 {
				centroids[i] = NormalizeUnit(mean)
				clusters[i].Centroid = centroids[i]
			}
		}

		if !changed {
			return dropEmpty(clusters)
		}
	}

	final := make([]Cluster, k)
	for i := range final {
		final[i].Centroid = centroids[i]
	}
	for i, cand := range candidates {
		if assign[i] < 0 || assign[i] >= k {
			assign[i] = 0
		}
		final[assign[i]].Members = append(final[assign[i]].Members, cand)
	}
	return dropEmpty(final)
}

func dropEmpty(clusters []Cluster) []Cluster {
	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Cohesion is the mean member-to-centroid similarity of one cluster.
func Cohesion(cl Cluster) float64 {
	if len(cl.Members) == 0 || len(cl.Centroid) == 0 {
		return 0
	}
	var sum float64
	for _, m := range cl.Members {
		if len(m.Vec) == 0 {
			continue
		}
		sum += cosineOrZero(m.Vec, cl.Centroid)
	}
	return sum / float64(len(cl.Members))
}
