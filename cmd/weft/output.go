package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/types"
	"github.com/weftworks/weft/internal/ui"
)

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// getActor resolves the acting identity for mutations:
// --actor flag > WEFT_ACTOR > user config > $USER > "unknown".
func getActor() string {
	return config.ResolveActor(actorFlag, weftDir)
}

// issueLine renders one issue as a table row.
func issueLine(issue *types.Issue) string {
	assignee := issue.Assignee
	if assignee == "" {
		assignee = "-"
	}
	return fmt.Sprintf("%-14s %s %-9s %-12s %-10s %s",
		issue.ID,
		ui.RenderMuted("p"+strconv.Itoa(issue.Priority)),
		issue.Type,
		ui.RenderStatus(issue.Status, issue.StatusCategory),
		ui.TruncateSimple(assignee, 10),
		ui.TruncateSimple(issue.Title, 60),
	)
}

// printIssues renders a list of issues, or JSON in --json mode.
func printIssues(issues []*types.Issue) error {
	if jsonOutput {
		return outputJSON(map[string]interface{}{"issues": issues})
	}
	if len(issues) == 0 {
		fmt.Println(ui.RenderMuted("no issues"))
		return nil
	}
	for _, issue := range issues {
		fmt.Println(issueLine(issue))
	}
	return nil
}

// printWarnings surfaces soft-enforcement warnings on stderr.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		WarnError("%s", w)
	}
}

// parseFieldArgs turns repeated --field name=value flags into a FieldMap,
// coercing values through the type's declared field schema when one
// exists. Without a declaration the value is inferred: int, bool, then
// text.
func parseFieldArgs(args []string, tmpl *types.TypeTemplate) (types.FieldMap, error) {
	if len(args) == 0 {
		return nil, nil
	}
	fields := make(types.FieldMap, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &engine.ValidationError{Msg: fmt.Sprintf("field %q must be name=value", arg)}
		}
		var decl *types.FieldSchema
		if tmpl != nil {
			if d, found := tmpl.FindField(name); found {
				decl = &d
			}
		}
		v, err := coerceFieldValue(raw, decl)
		if err != nil {
			return nil, &engine.ValidationError{Msg: fmt.Sprintf("field %s: %v", name, err)}
		}
		fields[name] = v
	}
	return fields, nil
}

func coerceFieldValue(raw string, decl *types.FieldSchema) (types.FieldValue, error) {
	if decl == nil {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return types.NewInt(n), nil
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			return types.NewBool(b), nil
		}
		return types.NewText(raw), nil
	}
	switch decl.Type {
	case types.FieldInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.FieldValue{}, fmt.Errorf("%q is not an integer", raw)
		}
		return types.NewInt(n), nil
	case types.FieldBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return types.FieldValue{}, fmt.Errorf("%q is not a boolean", raw)
		}
		return types.NewBool(b), nil
	case types.FieldList:
		if raw == "" {
			return types.NewList(), nil
		}
		items := strings.Split(raw, ",")
		for i := range items {
			items[i] = strings.TrimSpace(items[i])
		}
		return types.NewList(items...), nil
	case types.FieldEnum:
		return types.NewEnum(raw), nil
	case types.FieldDate:
		return parseDateValue(raw)
	default:
		return types.NewText(raw), nil
	}
}

func parseDateValue(raw string) (types.FieldValue, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return types.NewDate(t), nil
		}
	}
	return types.FieldValue{}, fmt.Errorf("%q is not a date (want RFC 3339 or YYYY-MM-DD)", raw)
}

// sortedCountLines renders a count map as "  key: n" lines in key order.
func sortedCountLines(m map[string]int, indent string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s%s: %d", indent, k, m[k]))
	}
	return out
}
