package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "views",
	Short:   "Full-text search over titles, descriptions, and notes",
	Long: `Searches the issue text index. The list filters apply on top of the
text match, so 'weft search timeout --category open' narrows to open
issues mentioning timeout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	// Search reuses the list filter flags.
	searchCmd.Flags().AddFlagSet(listCmd.Flags())
	_ = searchCmd.Flags().MarkHidden("watch")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	f, err := buildListFilter(cmd)
	if err != nil {
		FatalError("%v", err)
	}
	issues, err := eng.SearchIssues(cmd.Context(), strings.Join(args, " "), f)
	if err != nil {
		fatal(err)
	}
	return printIssues(issues)
}
