package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/ui"
)

var (
	closeStatus string
	closeReason string
)

var closeCmd = &cobra.Command{
	Use:     "close <id> [<id>...]",
	GroupID: "issues",
	Short:   "Close one or more issues",
	Long: `Moves issues to a done-category state. Without --status the type's
first done state applies. Closing an already closed issue is a no-op.
With several ids, a failure on one never aborts the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClose,
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	GroupID: "issues",
	Short:   "Reopen a closed issue",
	Long:    "Returns a closed issue to its type's initial state and clears closed_at.",
	Args:    cobra.ExactArgs(1),
	RunE:    runReopen,
}

func init() {
	closeCmd.Flags().StringVarP(&closeStatus, "status", "s", "", "Done-category state to use (e.g. wont_fix)")
	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "Reason recorded on the audit event")
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	req := engine.CloseRequest{Status: closeStatus, Reason: closeReason}
	actor := getActor()

	if len(args) > 1 {
		result := eng.BatchClose(cmd.Context(), args, req, actor)
		return printBatchResult(result, "closed")
	}

	issue, warnings, err := eng.CloseIssue(cmd.Context(), args[0], req, actor)
	if err != nil {
		fatal(err)
	}
	printWarnings(warnings)

	if jsonOutput {
		return outputJSON(map[string]interface{}{"issue": issue, "warnings": warnings})
	}
	fmt.Printf("%s closed %s (%s)\n", ui.RenderPassIcon(), issue.ID, issue.Status)
	return nil
}

func runReopen(cmd *cobra.Command, args []string) error {
	issue, warnings, err := eng.ReopenIssue(cmd.Context(), args[0], getActor())
	if err != nil {
		fatal(err)
	}
	printWarnings(warnings)

	if jsonOutput {
		return outputJSON(map[string]interface{}{"issue": issue, "warnings": warnings})
	}
	fmt.Printf("%s reopened %s (%s)\n", ui.RenderPassIcon(), issue.ID, issue.Status)
	return nil
}
