package flow

import (
	"context"

	"github.com/weftworks/weft/internal/types"
)

// maxTreeDepth bounds the parent walk so a corrupted parent chain cannot
// recurse forever.
const maxTreeDepth = 10

// TreeNode is one issue in a release progress tree. Progress is the
// fraction of leaf descendants whose status category is done; a leaf's own
// progress is 0 or 1. Non-leaves contribute only through their leaves, so
// intermediate grouping nodes never inflate the count.
type TreeNode struct {
	Issue     *types.Issue `json:"issue"`
	Children  []*TreeNode  `json:"children,omitempty"`
	Leaves    int          `json:"leaves"`
	DoneLeafs int          `json:"done_leaves"`
	Progress  float64      `json:"progress"`
}

// ReleaseSummary is one row of the releases overview.
type ReleaseSummary struct {
	Issue     *types.Issue `json:"issue"`
	Leaves    int          `json:"leaves"`
	DoneLeafs int          `json:"done_leaves"`
	Progress  float64      `json:"progress"`
}

// Releases lists release-type issues with their computed progress. Released
// (done-category) releases are excluded unless includeReleased is set.
func (s *Service) Releases(ctx context.Context, includeReleased bool) ([]*ReleaseSummary, error) {
	issues, err := s.eng.ListIssues(ctx, types.IssueFilter{})
	if err != nil {
		return nil, err
	}
	children := childIndex(issues)
	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	var out []*ReleaseSummary
	for _, issue := range issues {
		if issue.Type != "release" {
			continue
		}
		if !includeReleased && issue.StatusCategory == types.CategoryDone {
			continue
		}
		memo := make(map[string]leafCount)
		lc := countLeaves(issue.ID, byID, children, memo, 0)
		out = append(out, &ReleaseSummary{
			Issue:     issue,
			Leaves:    lc.total,
			DoneLeafs: lc.done,
			Progress:  lc.progress(),
		})
	}
	return out, nil
}

// ReleaseTree builds the full progress tree under one root issue.
func (s *Service) ReleaseTree(ctx context.Context, rootID string) (*TreeNode, error) {
	root, _, err := s.eng.GetIssue(ctx, rootID, false)
	if err != nil {
		return nil, err
	}
	issues, err := s.eng.ListIssues(ctx, types.IssueFilter{})
	if err != nil {
		return nil, err
	}
	children := childIndex(issues)
	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	memo := make(map[string]leafCount)
	return buildNode(root, byID, children, memo, 0), nil
}

type leafCount struct {
	total int
	done  int
}

func (lc leafCount) progress() float64 {
	if lc.total == 0 {
		return 0
	}
	return float64(lc.done) / float64(lc.total)
}

func childIndex(issues []*types.Issue) map[string][]*types.Issue {
	children := make(map[string][]*types.Issue)
	for _, issue := range issues {
		if issue.ParentID != "" {
			children[issue.ParentID] = append(children[issue.ParentID], issue)
		}
	}
	return children
}

func buildNode(issue *types.Issue, byID map[string]*types.Issue, children map[string][]*types.Issue, memo map[string]leafCount, depth int) *TreeNode {
	node := &TreeNode{Issue: issue}
	if depth < maxTreeDepth {
		for _, child := range children[issue.ID] {
			node.Children = append(node.Children, buildNode(child, byID, children, memo, depth+1))
		}
	}
	lc := countLeaves(issue.ID, byID, children, memo, depth)
	node.Leaves = lc.total
	node.DoneLeafs = lc.done
	node.Progress = lc.progress()
	return node
}

// countLeaves tallies the leaf descendants of id and how many are done.
// A node with no children counts itself as one leaf. Memoized per call so
// diamond-shaped walks stay linear; the depth guard contains parent-id
// cycles that slipped past validation.
func countLeaves(id string, byID map[string]*types.Issue, children map[string][]*types.Issue, memo map[string]leafCount, depth int) leafCount {
	if lc, ok := memo[id]; ok {
		return lc
	}
	issue, ok := byID[id]
	if !ok {
		return leafCount{}
	}

	kids := children[id]
	if len(kids) == 0 || depth >= maxTreeDepth {
		lc := leafCount{total: 1}
		if issue.StatusCategory == types.CategoryDone {
			lc.done = 1
		}
		memo[id] = lc
		return lc
	}

	var lc leafCount
	for _, child := range kids {
		sub := countLeaves(child.ID, byID, children, memo, depth+1)
		lc.total += sub.total
		lc.done += sub.done
	}
	memo[id] = lc
	return lc
}
