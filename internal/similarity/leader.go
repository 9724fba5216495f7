package similarity

import (
	"fmt"
	"strings"
	"time"
)

// LeaderPolicy picks the member of a duplicate group that stays in place.
type LeaderPolicy string

const (
	// LeaderEarliest keeps the first image in scan order.
	LeaderEarliest LeaderPolicy = "earliest"
	// LeaderLargest keeps the largest file, ties go to the earliest.
	LeaderLargest LeaderPolicy = "largest"
	// LeaderNewest keeps the most recently modified file, ties go to the earliest.
	LeaderNewest LeaderPolicy = "newest"
)

// Candidate is a group member with the metadata leader policies look at.
type Candidate struct {
	Index   int
	Path    string
	Size    int64
	ModTime time.Time
}

// ParseLeaderPolicy validates a policy name. An empty name selects LeaderEarliest.
func ParseLeaderPolicy(name string) (LeaderPolicy, error) {
	switch p := LeaderPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return LeaderEarliest, nil
	case LeaderEarliest, LeaderLargest, LeaderNewest:
		return p, nil
	default:
		return "", fmt.Errorf("unknown leader policy %q (expected earliest, largest or newest)", name)
	}
}

// OrderGroup returns the group with the chosen leader first and the remaining
// members in their original order. The input slice is not modified.
func (p LeaderPolicy) OrderGroup(group []Candidate) []Candidate {
	if len(group) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(group); i++ {
		if p.prefer(group[i], group[best]) {
			best = i
		}
	}

	ordered := make([]Candidate, 0, len(group))
	ordered = append(ordered, group[best])
	for i, c := range group {
		if i != best {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// prefer reports whether a should replace the current leader b. Strict comparisons
// keep the earlier member on ties.
func (p LeaderPolicy) prefer(a, b Candidate) bool {
	switch p {
	case LeaderLargest:
		return a.Size > b.Size
	case LeaderNewest:
		return a.ModTime.After(b.ModTime)
	default:
		return a.Index < b.Index
	}
}

// Paths returns the candidate paths in order.
func Paths(group []Candidate) []string {
	paths := make([]string, len(group))
	for i, c := range group {
		paths[i] = c.Path
	}
	return paths
}
