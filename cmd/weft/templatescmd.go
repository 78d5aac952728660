package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/ui"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	GroupID: "workflow",
	Short:   "Inspect issue type templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active issue types and their states",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Show one type's full workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

var templatesReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read packs and project templates from disk",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesReload,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesReloadCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	list := registry.ListTypes()
	if jsonOutput {
		return outputJSON(map[string]interface{}{"types": list})
	}
	for _, tmpl := range list {
		states := make([]string, 0, len(tmpl.States))
		for _, s := range tmpl.States {
			name := s.Name
			if name == tmpl.InitialState {
				name = "*" + name
			}
			states = append(states, name)
		}
		fmt.Printf("%s %s  %s\n",
			ui.RenderAccent(tmpl.Type),
			ui.RenderMuted("("+tmpl.Pack+")"),
			strings.Join(states, " → "))
	}
	return nil
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	tmpl, ok := registry.GetType(args[0])
	if !ok {
		FatalErrorWithHint(fmt.Sprintf("unknown issue type %q", args[0]), "see 'weft templates list'")
	}
	if jsonOutput {
		return outputJSON(tmpl)
	}

	fmt.Printf("%s %s\n", ui.RenderAccent(tmpl.Type), ui.RenderMuted("pack "+tmpl.Pack))
	if tmpl.Description != "" {
		fmt.Println(tmpl.Description)
	}
	fmt.Printf("\n%s\n", ui.RenderCategory("states"))
	for _, s := range tmpl.States {
		marker := " "
		if s.Name == tmpl.InitialState {
			marker = "*"
		}
		fmt.Printf("  %s %s %s\n", marker, ui.RenderStatus(s.Name, s.Category), ui.RenderMuted(string(s.Category)))
	}
	if len(tmpl.Transitions) > 0 {
		fmt.Printf("\n%s\n", ui.RenderCategory("transitions"))
		for _, tr := range tmpl.Transitions {
			line := fmt.Sprintf("  %s → %s", tr.From, tr.To)
			if len(tr.RequiresFields) > 0 {
				line += ui.RenderMuted(fmt.Sprintf(" [%s: %s]",
					tr.Enforcement, strings.Join(tr.RequiresFields, ", ")))
			}
			fmt.Println(line)
		}
	}
	if len(tmpl.FieldsSchema) > 0 {
		fmt.Printf("\n%s\n", ui.RenderCategory("fields"))
		for _, f := range tmpl.FieldsSchema {
			line := fmt.Sprintf("  %s %s", f.Name, ui.RenderMuted(string(f.Type)))
			if len(f.Options) > 0 {
				line += ui.RenderMuted(" (" + strings.Join(f.Options, "|") + ")")
			}
			fmt.Println(line)
		}
	}
	return nil
}

func runTemplatesReload(cmd *cobra.Command, args []string) error {
	registry.Reload()
	for _, w := range registry.Warnings() {
		WarnError("%s", w)
	}
	fmt.Printf("%s reloaded %d types\n", ui.RenderPassIcon(), len(registry.ListTypes()))
	return nil
}
