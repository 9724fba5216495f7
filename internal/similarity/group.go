package similarity

import "fmt"

// GroupIndices partitions the items of m into duplicate groups.
// Any pair with similarity >= threshold is joined, and joins are transitive, so a
// chain A~B, B~C ends up in one group even when A and C are not similar.
// Members of each group are in ascending index order and groups are ordered by their
// first member. Singletons are dropped.
func GroupIndices(m *Matrix, threshold float64) [][]int {
	n := m.Len()
	if n < 2 {
		return nil
	}

	ds := NewDisjointSet(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.At(i, j) >= threshold {
				ds.Union(i, j)
			}
		}
	}

	members := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := ds.Find(i)
		if _, ok := members[root]; !ok {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	var groups [][]int
	for _, root := range roots {
		if len(members[root]) > 1 {
			groups = append(groups, members[root])
		}
	}
	return groups
}

// GroupDuplicates groups paths whose embeddings are at least threshold similar.
// paths[i] corresponds to row i of m. The first path of each group is the earliest
// in input order and acts as the group leader.
func GroupDuplicates(m *Matrix, paths []string, threshold float64) ([][]string, error) {
	if len(paths) != m.Len() {
		return nil, fmt.Errorf("got %d paths for a %dx%d similarity matrix", len(paths), m.Len(), m.Len())
	}

	var groups [][]string
	for _, idx := range GroupIndices(m, threshold) {
		group := make([]string, len(idx))
		for k, i := range idx {
			group[k] = paths[i]
		}
		groups = append(groups, group)
	}
	return groups, nil
}
