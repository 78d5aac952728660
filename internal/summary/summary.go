// Package summary renders the context.md snapshot: a deterministic
// plain-text digest of the project that agents read to resume a session
// without replaying the event log. It regenerates after every mutation, so
// rendering stays cheap and concurrent triggers coalesce into one run.
package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/types"
)

const (
	readyTopN      = 10
	attentionLimit = 10
)

// Generator writes the summary snapshot for one project.
type Generator struct {
	eng  *engine.Engine
	path string

	group singleflight.Group
}

// NewGenerator returns a generator writing to path (the project's
// context.md).
func NewGenerator(eng *engine.Engine, path string) *Generator {
	return &Generator{eng: eng, path: path}
}

// Generate renders the snapshot and writes it atomically (temp file then
// rename). Concurrent calls share one render: callers arriving while a
// render is in flight get that render's result.
func (g *Generator) Generate(ctx context.Context) error {
	_, err, _ := g.group.Do("generate", func() (interface{}, error) {
		text, err := g.Render(ctx)
		if err != nil {
			return nil, err
		}
		return nil, writeAtomic(g.path, []byte(text))
	})
	return err
}

// Render builds the snapshot text without writing it.
func (g *Generator) Render(ctx context.Context) (string, error) {
	stats, err := g.eng.Statistics(ctx)
	if err != nil {
		return "", err
	}
	ready, err := g.eng.GetReady(ctx)
	if err != nil {
		return "", err
	}
	blocked, err := g.eng.GetBlocked(ctx)
	if err != nil {
		return "", err
	}
	path, err := g.eng.GetCriticalPath(ctx)
	if err != nil {
		return "", err
	}
	attention, err := g.needsAttention(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Project context\n\n")

	b.WriteString("## Vitals\n\n")
	fmt.Fprintf(&b, "- total: %d (open %d, wip %d, done %d)\n",
		stats.Total,
		stats.ByCategory[string(types.CategoryOpen)],
		stats.ByCategory[string(types.CategoryWip)],
		stats.ByCategory[string(types.CategoryDone)])
	fmt.Fprintf(&b, "- ready: %d, blocked: %d, unassigned: %d\n", stats.Ready, stats.Blocked, stats.Unassigned)
	for _, typ := range sortedKeys(stats.ByType) {
		fmt.Fprintf(&b, "- %s: %d\n", typ, stats.ByType[typ])
	}

	b.WriteString("\n## Ready\n\n")
	if len(ready) == 0 {
		b.WriteString("(nothing ready)\n")
	}
	for i, issue := range ready {
		if i == readyTopN {
			fmt.Fprintf(&b, "… and %d more\n", len(ready)-readyTopN)
			break
		}
		fmt.Fprintf(&b, "- %s p%d [%s] %s\n", issue.ID, issue.Priority, issue.Type, issue.Title)
	}

	b.WriteString("\n## Blocked\n\n")
	if len(blocked) == 0 {
		b.WriteString("(nothing blocked)\n")
	}
	for _, issue := range blocked {
		fmt.Fprintf(&b, "- %s %s ← blocked by %s\n", issue.ID, issue.Title, strings.Join(issue.Blockers, ", "))
	}

	b.WriteString("\n## Needs attention\n\n")
	if len(attention) == 0 {
		b.WriteString("(nothing pending fields)\n")
	}
	for _, line := range attention {
		b.WriteString("- " + line + "\n")
	}

	b.WriteString("\n## Critical path\n\n")
	if len(path) == 0 {
		b.WriteString("(no dependency chain)\n")
	} else {
		ids := make([]string, len(path))
		for i, issue := range path {
			ids[i] = fmt.Sprintf("%s (%s)", issue.ID, issue.Status)
		}
		b.WriteString(strings.Join(ids, " → ") + "\n")
	}

	return b.String(), nil
}

// needsAttention lists wip issues with a declared transition waiting on
// fields. All options out of the current state are scanned; the reported
// one is the first unsatisfied hard-enforced transition, falling back to
// the first unsatisfied of any enforcement. Declaration order does not
// encode likelihood, so a satisfied option earlier in the list must not
// hide a gated one after it.
func (g *Generator) needsAttention(ctx context.Context) ([]string, error) {
	wip, err := g.eng.ListIssues(ctx, types.IssueFilter{StatusCategory: types.CategoryWip})
	if err != nil {
		return nil, err
	}

	var out []string
	for _, issue := range wip {
		if len(out) == attentionLimit {
			break
		}
		opts := g.eng.Registry().GetValidTransitions(issue.Type, issue.Status, issue.Fields)
		next, ok := pickUnsatisfied(opts)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s: %s → %s needs %s",
			issue.ID, issue.Title, issue.Status, next.To, strings.Join(next.MissingFields, ", ")))
	}
	return out, nil
}

func pickUnsatisfied(opts []types.TransitionOption) (types.TransitionOption, bool) {
	fallback := -1
	for i, opt := range opts {
		if opt.Satisfied {
			continue
		}
		if opt.Enforcement == types.EnforcementHard {
			return opt, true
		}
		if fallback == -1 {
			fallback = i
		}
	}
	if fallback >= 0 {
		return opts[fallback], true
	}
	return types.TransitionOption{}, false
}

// writeAtomic writes via a sibling temp file and rename so readers never
// observe a partial snapshot.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".context-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Hook adapts Generate to the engine's AfterMutation signature. Render
// errors are swallowed: a failed snapshot must never fail the mutation that
// triggered it.
func (g *Generator) Hook() engine.MutationHook {
	return func(ctx context.Context) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = g.Generate(genCtx)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
