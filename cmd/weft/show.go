package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/types"
	"github.com/weftworks/weft/internal/ui"
)

var (
	showFull    bool
	showNoPager bool
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "views",
	Short:   "Show one issue in full",
	Long: `Shows an issue with its fields, relationships, valid transitions,
comments, and recent history. Long descriptions are truncated unless
--full is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showFull, "full", false, "Never truncate long text")
	showCmd.Flags().BoolVar(&showNoPager, "no-pager", false, "Print directly instead of paging")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	issue, transitions, err := eng.GetIssue(ctx, args[0], true)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{
			"issue":             issue,
			"valid_transitions": transitions,
		})
	}

	comments, err := eng.ListComments(ctx, issue.ID)
	if err != nil {
		return err
	}
	events, err := eng.ListEvents(ctx, issue.ID, 10)
	if err != nil {
		return err
	}

	var b strings.Builder
	writeShowHeader(&b, issue)
	writeShowBody(&b, issue)
	writeShowTransitions(&b, transitions)
	writeShowComments(&b, comments)
	writeShowHistory(&b, events)

	return ui.ToPager(b.String(), ui.PagerOptions{NoPager: showNoPager})
}

func writeShowHeader(b *strings.Builder, issue *types.Issue) {
	fmt.Fprintf(b, "%s %s\n", ui.RenderAccent(issue.ID), issue.Title)
	fmt.Fprintf(b, "%s p%d · %s · %s",
		ui.RenderStatus(issue.Status, issue.StatusCategory),
		issue.Priority, issue.Type,
		issue.CreatedAt.Format("2006-01-02"))
	if issue.Assignee != "" {
		fmt.Fprintf(b, " · assigned to %s", issue.Assignee)
	}
	if issue.ClosedAt != nil {
		fmt.Fprintf(b, " · closed %s", issue.ClosedAt.Format("2006-01-02"))
	}
	b.WriteString("\n")
	if len(issue.Labels) > 0 {
		fmt.Fprintf(b, "labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.ParentID != "" {
		fmt.Fprintf(b, "parent: %s\n", issue.ParentID)
	}
	if len(issue.Children) > 0 {
		fmt.Fprintf(b, "children: %s\n", strings.Join(issue.Children, ", "))
	}
	if len(issue.BlockedBy) > 0 {
		fmt.Fprintf(b, "%s blocked by: %s\n", ui.RenderWarnIcon(), strings.Join(issue.BlockedBy, ", "))
	}
	if len(issue.Blocks) > 0 {
		fmt.Fprintf(b, "blocks: %s\n", strings.Join(issue.Blocks, ", "))
	}
}

func writeShowBody(b *strings.Builder, issue *types.Issue) {
	if issue.Description != "" {
		b.WriteString("\n")
		desc := issue.Description
		if !showFull {
			desc = ui.TruncateLines(desc, ui.DefaultMaxLines, ui.DefaultContextLines)
		}
		b.WriteString(ui.RenderMarkdown(desc))
		b.WriteString("\n")
	}
	if issue.Notes != "" {
		fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("notes"))
		notes := issue.Notes
		if !showFull {
			notes = ui.TruncateLines(notes, ui.DefaultMaxLines, ui.DefaultContextLines)
		}
		b.WriteString(notes)
		b.WriteString("\n")
	}
	if len(issue.Fields) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("fields"))
		for _, line := range sortedFieldLines(issue.Fields) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
}

func sortedFieldLines(fields types.FieldMap) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("  %s: %s", name, fields[name].String()))
	}
	return out
}

func writeShowTransitions(b *strings.Builder, transitions []types.TransitionOption) {
	if len(transitions) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("transitions"))
	for _, tr := range transitions {
		switch {
		case tr.Satisfied:
			fmt.Fprintf(b, "  %s %s\n", ui.RenderPassIcon(), tr.To)
		case len(tr.MissingFields) > 0:
			fmt.Fprintf(b, "  %s %s (needs %s)\n",
				ui.RenderWarnIcon(), tr.To, strings.Join(tr.MissingFields, ", "))
		default:
			fmt.Fprintf(b, "  %s %s\n", ui.RenderSkipIcon(), tr.To)
		}
	}
}

func writeShowComments(b *strings.Builder, comments []*types.Comment) {
	if len(comments) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("comments"))
	for _, c := range comments {
		fmt.Fprintf(b, "  %s %s: %s\n",
			ui.RenderMuted(c.CreatedAt.Format("2006-01-02 15:04")),
			c.Author,
			ui.TruncateSimple(c.Text, 100))
	}
}

func writeShowHistory(b *strings.Builder, events []*types.Event) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("history"))
	for _, ev := range events {
		line := fmt.Sprintf("  %s %s",
			ui.RenderMuted(ev.CreatedAt.Format("2006-01-02 15:04")), ev.Type)
		if ev.OldValue != "" || ev.NewValue != "" {
			line += fmt.Sprintf(" %s → %s", ev.OldValue, ev.NewValue)
		}
		if ev.Actor != "" {
			line += ui.RenderMuted(" by " + ev.Actor)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}
