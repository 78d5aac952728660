package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/ui"
)

var commentCmd = &cobra.Command{
	Use:     "comment <id> <text>...",
	GroupID: "issues",
	Short:   "Add a comment to an issue",
	Args:    cobra.MinimumNArgs(2),
	RunE:    runComment,
}

func init() {
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	text := strings.Join(args[1:], " ")
	comment, err := eng.AddComment(cmd.Context(), args[0], getActor(), text)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(comment)
	}
	fmt.Printf("%s commented on %s\n", ui.RenderPassIcon(), comment.IssueID)
	return nil
}
