package vector

import "math"

// Point2D is one embedding projected onto the first two principal
// components, used for map-style visualization of the corpus.
type Point2D struct {
	X float64
	Y float64
}

// ProjectTo2D runs PCA via power iteration and projects every input
// vector onto the top two components. Inputs shorter than the first
// vector's dimension are skipped and come back as the origin. Fewer than
// two inputs carry no spread, so everything maps to the origin.
func ProjectTo2D(vecs [][]float32) []Point2D {
	out := make([]Point2D, len(vecs))
	if len(vecs) < 2 {
		return out
	}
	dim := len(vecs[0])
	if dim == 0 {
		return out
	}

	mean := make([]float64, dim)
	n := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			mean[i] += float64(v[i])
		}
		n++
	}
	if n < 2 {
		return out
	}
	for i := range mean {
		mean[i] /= float64(n)
	}

	centered := make([][]float64, 0, n)
	rows := make([]int, 0, n)
	for idx, v := range vecs {
		if len(v) != dim {
			continue
		}
		row := make([]float64, dim)
		for i := range v {
			row[i] = float64(v[i]) - mean[i]
		}
		centered = append(centered, row)
		rows = append(rows, idx)
	}

	pc1 := powerIterate(centered, nil)
	pc2 := powerIterate(centered, pc1)

	for i, row := range centered {
		out[rows[i]] = Point2D{X: dot64(row, pc1), Y: dot64(row, pc2)}
	}
	return out
}

// powerIterate finds the dominant direction of the centered data,
// deflating out `exclude` when given. The starting vector is fixed so
// repeated runs agree.
func powerIterate(rows [][]float64, exclude []float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	v := make([]float64, dim)
	for i := range v {
		v[i] = 1.0 / math.Sqrt(float64(dim))
	}
	if exclude != nil {
		orthogonalize(v, exclude)
	}

	for iter := 0; iter < 50; iter++ {
		next := make([]float64, dim)
		for _, row := range rows {
			p := dot64(row, v)
			for i := range row {
				next[i] += p * row[i]
			}
		}
		if exclude != nil {
			orthogonalize(next, exclude)
		}
		norm := 0.0
		for _, x := range next {
			norm += x * x
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			return v
		}
		for i := range next {
			next[i] /= norm
		}
		delta := 0.0
		for i := range next {
			d := next[i] - v[i]
			delta += d * d
		}
		v = next
		if delta < 1e-18 {
			break
		}
	}
	return v
}

func orthogonalize(v, against []float64) {
	p := dot64(v, against)
	for i := range v {
		v[i] -= p * against[i]
	}
}

func dot64(a, b []float64) float64 {
	if len(b) < len(a) {
		a = a[:len(b)]
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
