package engine

import (
	"context"

	"github.com/weftworks/weft/internal/types"
)

// GetCriticalPath returns the longest chain of unresolved blocks edges,
// ordered blocker-first. Done-category issues and the edges touching them
// are excluded: the path reflects remaining work only. With no dependencies
// at all the path is empty.
//
// The dependency graph is acyclic by construction (AddDependency rejects
// cycles), so a single topological pass computes the longest path ending at
// every node. Ties resolve to the earliest candidate in the usual
// (priority asc, created_at asc) issue order, which keeps the result stable
// across runs.
func (e *Engine) GetCriticalPath(ctx context.Context) ([]*types.Issue, error) {
	issues, err := e.ListIssues(ctx, types.IssueFilter{})
	if err != nil {
		return nil, err
	}

	active := make(map[string]*types.Issue)
	var order []string // list order, used for deterministic tie-breaking
	for _, issue := range issues {
		if issue.StatusCategory == types.CategoryDone {
			continue
		}
		active[issue.ID] = issue
		order = append(order, issue.ID)
	}

	deps, err := e.store.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}

	// Edges run blocker -> blocked: the blocker must finish first, so it
	// precedes the dependent on the path.
	succ := make(map[string][]string)
	indegree := make(map[string]int)
	hasEdge := false
	for _, dep := range deps {
		if dep.Kind != types.DependencyBlocks {
			continue
		}
		from, to := dep.ToID, dep.FromID
		if active[from] == nil || active[to] == nil {
			continue
		}
		succ[from] = append(succ[from], to)
		indegree[to]++
		hasEdge = true
	}
	if !hasEdge {
		return []*types.Issue{}, nil
	}

	dist := make(map[string]int, len(active))
	pred := make(map[string]string, len(active))
	for id := range active {
		dist[id] = 1
	}

	var queue []string
	for _, id := range order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range succ[u] {
			if dist[u]+1 > dist[v] {
				dist[v] = dist[u] + 1
				pred[v] = u
			}
			indegree[v]--
			if indegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	end, best := "", 1
	for _, id := range order {
		if dist[id] > best {
			best = dist[id]
			end = id
		}
	}
	if end == "" {
		return []*types.Issue{}, nil
	}

	path := make([]*types.Issue, 0, best)
	for id := end; id != ""; id = pred[id] {
		path = append(path, active[id])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
