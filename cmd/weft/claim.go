package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/ui"
)

var (
	claimAssignee string

	claimNextType        string
	claimNextAssignee    string
	claimNextPriorityMin int
	claimNextPriorityMax int
)

var claimCmd = &cobra.Command{
	Use:     "claim <id>",
	GroupID: "issues",
	Short:   "Claim an open issue for yourself",
	Long: `Atomically moves an unassigned open issue into work and assigns it.
Losing a claim race to another agent exits with a conflict error; pick
another issue or use claim-next.`,
	Args: cobra.ExactArgs(1),
	RunE: runClaim,
}

var releaseCmd = &cobra.Command{
	Use:     "release <id>",
	GroupID: "issues",
	Short:   "Release a claimed issue back to the pool",
	Args:    cobra.ExactArgs(1),
	RunE:    runRelease,
}

var claimNextCmd = &cobra.Command{
	Use:     "claim-next",
	GroupID: "issues",
	Short:   "Claim the best ready unassigned issue",
	Long: `Claims the highest-priority ready issue that matches the filters.
Race losses move on to the next candidate. Exits 0 with a notice when
nothing is claimable.`,
	Args: cobra.NoArgs,
	RunE: runClaimNext,
}

func init() {
	claimCmd.Flags().StringVarP(&claimAssignee, "assignee", "a", "", "Assignee (default: resolved actor)")
	claimNextCmd.Flags().StringVarP(&claimNextAssignee, "assignee", "a", "", "Assignee (default: resolved actor)")
	claimNextCmd.Flags().StringVarP(&claimNextType, "type", "t", "", "Only this issue type")
	claimNextCmd.Flags().IntVar(&claimNextPriorityMin, "priority-min", -1, "Only priority >= this")
	claimNextCmd.Flags().IntVar(&claimNextPriorityMax, "priority-max", -1, "Only priority <= this")
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(claimNextCmd)
}

func claimIdentity(flag string) string {
	if flag != "" {
		return flag
	}
	return getActor()
}

func runClaim(cmd *cobra.Command, args []string) error {
	assignee := claimIdentity(claimAssignee)
	issue, err := eng.ClaimIssue(cmd.Context(), args[0], assignee, getActor())
	if err != nil {
		var conflict *engine.ConflictError
		if errors.As(err, &conflict) {
			FatalErrorWithHint(conflict.Msg, "try 'weft claim-next' to grab the next ready issue")
		}
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(issue)
	}
	fmt.Printf("%s claimed %s for %s (%s)\n",
		ui.RenderPassIcon(), issue.ID, assignee, issue.Status)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	issue, err := eng.ReleaseClaim(cmd.Context(), args[0], getActor())
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(issue)
	}
	fmt.Printf("%s released %s (%s)\n", ui.RenderPassIcon(), issue.ID, issue.Status)
	return nil
}

func runClaimNext(cmd *cobra.Command, args []string) error {
	req := engine.ClaimNextRequest{Type: claimNextType}
	if cmd.Flags().Changed("priority-min") {
		req.PriorityMin = &claimNextPriorityMin
	}
	if cmd.Flags().Changed("priority-max") {
		req.PriorityMax = &claimNextPriorityMax
	}

	assignee := claimIdentity(claimNextAssignee)
	issue, err := eng.ClaimNext(cmd.Context(), assignee, req, getActor())
	if err != nil {
		fatal(err)
	}
	if issue == nil {
		if jsonOutput {
			return outputJSON(map[string]interface{}{"issue": nil})
		}
		fmt.Println(ui.RenderMuted("nothing claimable right now"))
		return nil
	}

	if jsonOutput {
		return outputJSON(issue)
	}
	fmt.Printf("%s claimed %s for %s: %s\n",
		ui.RenderPassIcon(), issue.ID, assignee, issue.Title)
	return nil
}
