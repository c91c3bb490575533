package dedupe

import (
	"context"
	"sort"

	"github.com/matsen/shelf/internal/worker"
)

// Edge links two candidates that scored at least the threshold.
type Edge struct {
	A, B  int64
	Score float64
}

// FindGroups compares every pair of candidates and returns the connected
// components of the duplicate graph. Each group is sorted ascending and the
// groups are ordered by their smallest id; singletons are dropped. Each row
// of comparisons runs as one job on master.
func FindGroups(ctx context.Context, m *worker.Master, cands []Candidate, threshold int) ([][]int64, error) {
	t := float64(ClampThreshold(threshold))
	jobs := make([]worker.Job[[]Edge], 0, len(cands))
	for i := range cands {
		i := i
		jobs = append(jobs, worker.Job[[]Edge]{ID: i, Do: func(ctx context.Context) ([]Edge, error) {
			var edges []Edge
			for j := i + 1; j < len(cands); j++ {
				if s, ok := Match(cands[i], cands[j], t); ok {
					edges = append(edges, Edge{A: cands[i].ID, B: cands[j].ID, Score: s})
				}
			}
			return edges, nil
		}})
	}
	return groupsFromJobs(ctx, m, cands, jobs)
}

// FindForDocument compares one candidate against the others and returns its
// group, if any, in the same shape as FindGroups.
func FindForDocument(ctx context.Context, m *worker.Master, d Candidate, cands []Candidate, threshold int) ([][]int64, error) {
	t := float64(ClampThreshold(threshold))
	var others []Candidate
	for _, c := range cands {
		if c.ID != d.ID {
			others = append(others, c)
		}
	}
	jobs := make([]worker.Job[[]Edge], 0, len(others))
	for i, c := range others {
		c := c
		jobs = append(jobs, worker.Job[[]Edge]{ID: i, Do: func(ctx context.Context) ([]Edge, error) {
			if s, ok := Match(d, c, t); ok {
				return []Edge{{A: d.ID, B: c.ID, Score: s}}, nil
			}
			return nil, nil
		}})
	}
	return groupsFromJobs(ctx, m, append(others, d), jobs)
}

func groupsFromJobs(ctx context.Context, m *worker.Master, cands []Candidate, jobs []worker.Job[[]Edge]) ([][]int64, error) {
	results, err := worker.Run(ctx, m, jobs)
	if err != nil {
		return nil, err
	}
	var edges []Edge
	for _, es := range worker.Values(results) {
		edges = append(edges, es...)
	}
	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return Components(ids, edges), nil
}

// Components returns the connected components of the graph with more than
// one member, found by iterative depth-first search.
func Components(ids []int64, edges []Edge) [][]int64 {
	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	seen := make(map[int64]bool, len(ids))
	var groups [][]int64
	for _, start := range sorted {
		if seen[start] {
			continue
		}
		seen[start] = true
		group := []int64{start}
		stack := []int64{start}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range adj[n] {
				if !seen[next] {
					seen[next] = true
					group = append(group, next)
					stack = append(stack, next)
				}
			}
		}
		if len(group) > 1 {
			sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
			groups = append(groups, group)
		}
	}
	return groups
}
