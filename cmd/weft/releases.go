package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/ui"
)

var (
	releasesAll  bool
	releasesTree string
)

var releasesCmd = &cobra.Command{
	Use:     "releases",
	GroupID: "views",
	Short:   "Show release progress",
	Long: `Lists release issues with done-leaf progress. --tree prints the full
hierarchy under one release, with per-node progress.`,
	Args: cobra.NoArgs,
	RunE: runReleases,
}

func init() {
	releasesCmd.Flags().BoolVar(&releasesAll, "all", false, "Include released (done) releases")
	releasesCmd.Flags().StringVar(&releasesTree, "tree", "", "Print the tree under this release id")
	rootCmd.AddCommand(releasesCmd)
}

func runReleases(cmd *cobra.Command, args []string) error {
	svc := flow.NewService(eng)

	if releasesTree != "" {
		node, err := svc.ReleaseTree(cmd.Context(), releasesTree)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			return outputJSON(node)
		}
		printTreeNode(node, 0)
		return nil
	}

	releases, err := svc.Releases(cmd.Context(), releasesAll)
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		return outputJSON(map[string]interface{}{"releases": releases})
	}
	if len(releases) == 0 {
		fmt.Println(ui.RenderMuted("no active releases"))
		return nil
	}
	for _, r := range releases {
		fmt.Printf("%s %s %s %d/%d (%.0f%%)\n",
			ui.RenderAccent(r.Issue.ID), r.Issue.Title,
			ui.RenderStatus(r.Issue.Status, r.Issue.StatusCategory),
			r.DoneLeafs, r.Leaves, r.Progress*100)
	}
	return nil
}

func printTreeNode(node *flow.TreeNode, depth int) {
	indent := strings.Repeat(ui.TreeIndent, depth)
	marker := ""
	if depth > 0 {
		marker = ui.TreeChild
	}
	fmt.Printf("%s%s%s %s %s %d/%d\n",
		indent, marker,
		ui.RenderAccent(node.Issue.ID), node.Issue.Title,
		ui.RenderStatus(node.Issue.Status, node.Issue.StatusCategory),
		node.DoneLeafs, node.Leaves)
	for _, child := range node.Children {
		printTreeNode(child, depth+1)
	}
}
