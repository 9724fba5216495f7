package similarity

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/coder/hnsw"
)

// HNSW graph parameters
const (
	indexMaxNeighbors     = 16
	indexEfSearch         = 100
	indexSearchMultiplier = 3
)

// ErrEmptyIndex is returned when searching an index with no vectors.
var ErrEmptyIndex = errors.New("index is empty")

// Neighbor is a search hit.
type Neighbor struct {
	Path       string
	Similarity float64
}

// Index is an approximate nearest-neighbour index over image embeddings keyed by path.
type Index struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
}

// BuildIndex indexes vectors under their paths. paths[i] corresponds to vectors[i].
func BuildIndex(paths []string, vectors [][]float32) (*Index, error) {
	if len(paths) != len(vectors) {
		return nil, fmt.Errorf("got %d paths for %d vectors", len(paths), len(vectors))
	}

	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.CosineDistance

	idx := &Index{graph: g, vectors: make(map[string][]float32, len(paths))}
	var dim int
	for i, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, fmt.Errorf("vector for %s has dimension %d, expected %d", paths[i], len(v), dim)
		}
		if _, dup := idx.vectors[paths[i]]; dup {
			continue
		}
		g.Add(hnsw.MakeNode(paths[i], v))
		idx.vectors[paths[i]] = v
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	return len(x.vectors)
}

// Search returns up to k neighbours of query ordered by descending similarity.
// Hits below minSimilarity are dropped; pass -1 to keep everything.
func (x *Index) Search(query []float32, k int, minSimilarity float64) ([]Neighbor, error) {
	if x.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}

	searchK := min(max(k*indexSearchMultiplier, indexEfSearch), x.Len())
	nodes := x.graph.Search(query, searchK)

	hits := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		v, ok := x.vectors[n.Key]
		if !ok {
			continue
		}
		sim := 1 - CosineDistance(query, v)
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, Neighbor{Path: n.Key, Similarity: sim})
	}

	slices.SortStableFunc(hits, func(a, b Neighbor) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	similarity = max(-1, min(1, similarity))
	return 1 - similarity
}
