package similarity

// DisjointSet is a union-find structure over the indices 0..n-1.
type DisjointSet struct {
	parent []int
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &DisjointSet{parent: parent}
}

// Find returns the root of x, compressing the path along the way.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the set containing j into the set containing i.
func (d *DisjointSet) Union(i, j int) {
	ri, rj := d.Find(i), d.Find(j)
	if ri != rj {
		d.parent[rj] = ri
	}
}
