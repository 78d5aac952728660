package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/types"
	"github.com/weftworks/weft/internal/ui"
)

var (
	updateStatus      string
	updatePriority    int
	updateTitle       string
	updateAssignee    string
	updateDescription string
	updateNotes       string
	updateParent      string
	updateFields      []string
	updateAddLabels   []string
	updateRmLabels    []string
)

var updateCmd = &cobra.Command{
	Use:     "update <id> [<id>...]",
	GroupID: "issues",
	Short:   "Update issue fields and/or status",
	Long: `Applies the given changes to one or more issues. A status change plus
field updates is atomic: when a hard transition blocks, nothing is
written. With several ids, each is updated independently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "New workflow state")
	updateCmd.Flags().IntVarP(&updatePriority, "priority", "p", -1, "New priority 0..4")
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVarP(&updateAssignee, "assignee", "a", "", "New assignee (use \"\" to unassign)")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "New description")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "New notes")
	updateCmd.Flags().StringVar(&updateParent, "parent", "", "New parent id (use \"\" to detach)")
	updateCmd.Flags().StringArrayVarP(&updateFields, "field", "f", nil, "Custom field name=value (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateAddLabels, "add-label", nil, "Attach a label (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateRmLabels, "remove-label", nil, "Detach a label (repeatable)")
	rootCmd.AddCommand(updateCmd)
}

func buildUpdateRequest(cmd *cobra.Command, typeName string) (types.UpdateRequest, error) {
	var req types.UpdateRequest
	if cmd.Flags().Changed("status") {
		req.Status = &updateStatus
	}
	if cmd.Flags().Changed("priority") {
		req.Priority = &updatePriority
	}
	if cmd.Flags().Changed("title") {
		req.Title = &updateTitle
	}
	if cmd.Flags().Changed("assignee") {
		req.Assignee = &updateAssignee
	}
	if cmd.Flags().Changed("description") {
		req.Description = &updateDescription
	}
	if cmd.Flags().Changed("notes") {
		req.Notes = &updateNotes
	}
	if cmd.Flags().Changed("parent") {
		req.ParentID = &updateParent
	}
	tmpl, _ := eng.Registry().GetType(typeName)
	fields, err := parseFieldArgs(updateFields, tmpl)
	if err != nil {
		return req, err
	}
	req.Fields = fields
	return req, nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	actor := getActor()

	if len(args) > 1 {
		// Type-specific field coercion needs a single type; batch updates
		// fall back to inferred values.
		req, err := buildUpdateRequest(cmd, "")
		if err != nil {
			fatal(err)
		}
		result := eng.BatchUpdate(cmd.Context(), args, req, actor)
		for _, id := range result.Succeeded {
			if err := applyLabelChanges(cmd, id, actor); err != nil {
				WarnError("%s: %v", id, err)
			}
		}
		return printBatchResult(result, "updated")
	}

	id := args[0]
	current, _, err := eng.GetIssue(cmd.Context(), id, false)
	if err != nil {
		fatal(err)
	}
	req, err := buildUpdateRequest(cmd, current.Type)
	if err != nil {
		fatal(err)
	}

	issue, warnings, err := eng.UpdateIssue(cmd.Context(), id, req, actor)
	if err != nil {
		fatal(err)
	}
	printWarnings(warnings)
	if err := applyLabelChanges(cmd, id, actor); err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{"issue": issue, "warnings": warnings})
	}
	fmt.Printf("%s updated %s (%s)\n", ui.RenderPassIcon(), issue.ID,
		ui.RenderStatus(issue.Status, issue.StatusCategory))
	return nil
}

func applyLabelChanges(cmd *cobra.Command, id, actor string) error {
	for _, label := range updateAddLabels {
		if err := eng.AddLabel(cmd.Context(), id, label, actor); err != nil {
			return err
		}
	}
	for _, label := range updateRmLabels {
		if err := eng.RemoveLabel(cmd.Context(), id, label, actor); err != nil {
			return err
		}
	}
	return nil
}

// printBatchResult renders a BatchResult for close/update commands. The
// command fails (exit 1) when every id failed.
func printBatchResult(result *types.BatchResult, verb string) error {
	if jsonOutput {
		if err := outputJSON(result); err != nil {
			return err
		}
	} else {
		for _, id := range result.Succeeded {
			fmt.Printf("%s %s %s\n", ui.RenderPassIcon(), verb, id)
		}
		for _, w := range result.Warnings {
			for _, msg := range w.Warnings {
				WarnError("%s: %s", w.ID, msg)
			}
		}
		for _, f := range result.Failed {
			fmt.Printf("%s %s: %s\n", ui.RenderFailIcon(), f.ID, f.Error)
		}
	}
	if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
		FatalError("all %d operations failed", len(result.Failed))
	}
	return nil
}
