package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/types"
	"github.com/weftworks/weft/internal/ui"
)

var depsCmd = &cobra.Command{
	Use:     "deps",
	GroupID: "issues",
	Short:   "Manage dependencies between issues",
	Long: `Blocking edges gate readiness: an issue with an unfinished blocker
never appears in 'weft ready'. Edges that would close a cycle are
rejected.`,
}

var depsAddCmd = &cobra.Command{
	Use:   "add <id> <blocker-id>",
	Short: "Record that an issue is blocked by another",
	Args:  cobra.ExactArgs(2),
	RunE:  runDepsAdd,
}

var depsRemoveCmd = &cobra.Command{
	Use:     "rm <id> <blocker-id>",
	Aliases: []string{"remove"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	RunE:    runDepsRemove,
}

var depsListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List an issue's dependency edges",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsList,
}

func init() {
	depsCmd.AddCommand(depsAddCmd)
	depsCmd.AddCommand(depsRemoveCmd)
	depsCmd.AddCommand(depsListCmd)
	rootCmd.AddCommand(depsCmd)
}

func runDepsAdd(cmd *cobra.Command, args []string) error {
	dep, err := eng.AddDependency(cmd.Context(), args[0], args[1], types.DependencyBlocks, getActor())
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(dep)
	}
	fmt.Printf("%s %s now blocked by %s\n", ui.RenderPassIcon(), dep.FromID, dep.ToID)
	return nil
}

func runDepsRemove(cmd *cobra.Command, args []string) error {
	if err := eng.RemoveDependency(cmd.Context(), args[0], args[1], getActor()); err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{"removed": true})
	}
	fmt.Printf("%s removed dependency %s -> %s\n", ui.RenderPassIcon(), args[0], args[1])
	return nil
}

func runDepsList(cmd *cobra.Command, args []string) error {
	deps, err := eng.ListDependencies(cmd.Context(), args[0])
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{"dependencies": deps})
	}
	if len(deps) == 0 {
		fmt.Println(ui.RenderMuted("no dependencies"))
		return nil
	}
	for _, d := range deps {
		fmt.Printf("%s %s %s\n", d.FromID, ui.RenderMuted(d.Kind), d.ToID)
	}
	return nil
}
