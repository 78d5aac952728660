package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/ui"
)

var (
	createType        string
	createPriority    int
	createDescription string
	createNotes       string
	createParent      string
	createLabels      []string
	createDependsOn   []string
	createFields      []string
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	GroupID: "issues",
	Short:   "Create a new issue",
	Long: `Creates an issue in its type's initial workflow state. Custom fields
declared by the type's template are set with repeated --field name=value.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", "task", "Issue type (task, bug, feature, epic, ...)")
	createCmd.Flags().IntVarP(&createPriority, "priority", "p", 2, "Priority 0 (highest) to 4")
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Description text")
	createCmd.Flags().StringVar(&createNotes, "notes", "", "Free-form notes")
	createCmd.Flags().StringVar(&createParent, "parent", "", "Parent issue id")
	createCmd.Flags().StringArrayVarP(&createLabels, "label", "l", nil, "Label (repeatable)")
	createCmd.Flags().StringArrayVar(&createDependsOn, "depends-on", nil, "Blocking issue id (repeatable)")
	createCmd.Flags().StringArrayVarP(&createFields, "field", "f", nil, "Custom field name=value (repeatable)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	tmpl, _ := eng.Registry().GetType(createType)
	fields, err := parseFieldArgs(createFields, tmpl)
	if err != nil {
		fatal(err)
	}

	issue, err := eng.CreateIssue(cmd.Context(), engine.CreateRequest{
		Title:       strings.Join(args, " "),
		Type:        createType,
		Priority:    createPriority,
		ParentID:    createParent,
		Description: createDescription,
		Notes:       createNotes,
		Fields:      fields,
		Labels:      createLabels,
		DependsOn:   createDependsOn,
		Actor:       getActor(),
	})
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(issue)
	}
	fmt.Printf("%s created %s (%s, %s)\n",
		ui.RenderPassIcon(), issue.ID, issue.Type, issue.Status)
	return nil
}
