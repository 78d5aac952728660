package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/ui"
)

var readyCmd = &cobra.Command{
	Use:     "ready",
	GroupID: "views",
	Short:   "List issues ready to be worked on",
	Long: `Lists open-category issues with no unresolved blockers, ordered by
priority then age. This is the claim queue.`,
	Args: cobra.NoArgs,
	RunE: runReady,
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: "views",
	Short:   "List blocked issues with their blockers",
	Args:    cobra.NoArgs,
	RunE:    runBlocked,
}

var criticalPathCmd = &cobra.Command{
	Use:     "critical-path",
	GroupID: "views",
	Short:   "Show the longest chain of blocking work",
	Long: `Computes the longest dependency chain among unfinished issues. The
head of the chain is the most leveraged thing to finish next.`,
	Args: cobra.NoArgs,
	RunE: runCriticalPath,
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "views",
	Short:   "Show project vitals",
	Args:    cobra.NoArgs,
	RunE:    runStats,
}

func init() {
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)
	rootCmd.AddCommand(criticalPathCmd)
	rootCmd.AddCommand(statsCmd)
}

func runReady(cmd *cobra.Command, args []string) error {
	issues, err := eng.GetReady(cmd.Context())
	if err != nil {
		fatal(err)
	}
	return printIssues(issues)
}

func runBlocked(cmd *cobra.Command, args []string) error {
	blocked, err := eng.GetBlocked(cmd.Context())
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		return outputJSON(map[string]interface{}{"issues": blocked})
	}
	if len(blocked) == 0 {
		fmt.Println(ui.RenderMuted("nothing blocked"))
		return nil
	}
	for _, b := range blocked {
		fmt.Println(issueLine(&b.Issue))
		fmt.Printf("  %sblocked by %s\n", ui.TreeLast, strings.Join(b.Blockers, ", "))
	}
	return nil
}

func runCriticalPath(cmd *cobra.Command, args []string) error {
	path, err := eng.GetCriticalPath(cmd.Context())
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		return outputJSON(map[string]interface{}{"path": path})
	}
	if len(path) == 0 {
		fmt.Println(ui.RenderMuted("no dependency chains"))
		return nil
	}
	for i, issue := range path {
		fmt.Printf("%s%s\n", strings.Repeat(ui.TreeIndent, i)+ui.TreeChild, issueLine(issue))
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := eng.Statistics(cmd.Context())
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		return outputJSON(stats)
	}
	fmt.Printf("%s\n", ui.RenderCategory("vitals"))
	fmt.Printf("total %d · ready %d · blocked %d · unassigned %d\n",
		stats.Total, stats.Ready, stats.Blocked, stats.Unassigned)
	fmt.Println("by category:")
	for _, line := range sortedCountLines(stats.ByCategory, "  ") {
		fmt.Println(line)
	}
	fmt.Println("by type:")
	for _, line := range sortedCountLines(stats.ByType, "  ") {
		fmt.Println(line)
	}
	return nil
}
