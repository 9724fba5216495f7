// Package similarity turns image embeddings into groups of near-duplicates.
package similarity

import "fmt"

// Matrix is a symmetric N x N matrix of cosine similarities.
type Matrix struct {
	n    int
	data []float64
}

// Len returns N.
func (m *Matrix) Len() int {
	return m.n
}

// At returns the similarity between items i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// ComputeMatrix builds the pairwise similarity matrix of unit-norm embeddings.
// Each entry is the dot product of two vectors accumulated in float64; only the upper
// triangle is computed and mirrored, so At(i, j) == At(j, i) holds exactly.
func ComputeMatrix(embeddings [][]float32) (*Matrix, error) {
	n := len(embeddings)
	m := &Matrix{n: n, data: make([]float64, n*n)}
	if n == 0 {
		return m, nil
	}

	dim := len(embeddings[0])
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := dot(embeddings[i], embeddings[j])
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	}
	return m, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for k := range a {
		sum += float64(a[k]) * float64(b[k])
	}
	return sum
}
