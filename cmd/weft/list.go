package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/types"
	"github.com/weftworks/weft/internal/ui"
)

var (
	listStatus      string
	listCategory    string
	listType        string
	listAssignee    string
	listUnassigned  bool
	listParent      string
	listLabel       string
	listPriorityMin int
	listPriorityMax int
	listLimit       int
	listOffset      int
	listWatch       bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "views",
	Short:   "List issues",
	Long: `Lists issues matching the filters. --category filters by the open/wip/
done bucket across all types; --status matches a literal state name.
--watch re-renders whenever the database changes.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Literal workflow state")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Status category: open, wip, or done")
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "Issue type")
	listCmd.Flags().StringVarP(&listAssignee, "assignee", "a", "", "Assignee")
	listCmd.Flags().BoolVar(&listUnassigned, "unassigned", false, "Only unassigned issues")
	listCmd.Flags().StringVar(&listParent, "parent", "", "Parent issue id")
	listCmd.Flags().StringVarP(&listLabel, "label", "l", "", "Label")
	listCmd.Flags().IntVar(&listPriorityMin, "priority-min", -1, "Only priority >= this")
	listCmd.Flags().IntVar(&listPriorityMax, "priority-max", -1, "Only priority <= this")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Max results (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip this many results")
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "Re-render on database changes")
	rootCmd.AddCommand(listCmd)
}

func buildListFilter(cmd *cobra.Command) (types.IssueFilter, error) {
	f := types.IssueFilter{
		Status:   listStatus,
		Type:     listType,
		ParentID: listParent,
		Label:    listLabel,
		Limit:    listLimit,
		Offset:   listOffset,
	}
	if listCategory != "" {
		cat, ok := types.ParseCategory(listCategory)
		if !ok {
			return f, fmt.Errorf("category must be open, wip, or done, got %q", listCategory)
		}
		f.StatusCategory = cat
	}
	switch {
	case listUnassigned:
		empty := ""
		f.Assignee = &empty
	case cmd.Flags().Changed("assignee"):
		f.Assignee = &listAssignee
	}
	if cmd.Flags().Changed("priority-min") {
		f.PriorityMin = &listPriorityMin
	}
	if cmd.Flags().Changed("priority-max") {
		f.PriorityMax = &listPriorityMax
	}
	return f, nil
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := buildListFilter(cmd)
	if err != nil {
		FatalError("%v", err)
	}

	render := func() error {
		issues, err := eng.ListIssues(cmd.Context(), f)
		if err != nil {
			return err
		}
		return printIssues(issues)
	}

	if !listWatch {
		if err := render(); err != nil {
			fatal(err)
		}
		return nil
	}
	return watchAndRender(cmd, render)
}

// watchAndRender re-runs render whenever the project database changes,
// debounced so WAL checkpoint bursts repaint once. Runs until interrupted.
func watchAndRender(cmd *cobra.Command, render func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: SQLite WAL mode touches weft.db,
	// -wal and -shm, and rename-style writes would drop a file watch.
	if err := watcher.Add(weftDir); err != nil {
		return err
	}

	clearAndRender := func() {
		if ui.IsTerminal() {
			fmt.Print("\033[2J\033[H")
		}
		if err := render(); err != nil {
			WarnError("%v", err)
		}
		fmt.Println(ui.RenderMuted("\nwatching for changes, ctrl-c to stop"))
	}
	clearAndRender()

	var debounce *time.Timer
	redraw := make(chan struct{}, 1)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-redraw:
			clearAndRender()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(ev.Name, configfile.DatabasePath(weftDir)) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case redraw <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
