package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/timeparse"
	"github.com/weftworks/weft/internal/ui"
)

var (
	activitySince     string
	activityActor     string
	activityEventType string
	activityLimit     int
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	GroupID: "views",
	Short:   "Show recent project activity",
	Long: `Streams the audit trail across all issues, oldest first. --since takes
compact offsets (-1d, -6h), natural language ("yesterday", "3 days
ago"), or timestamps.`,
	Args: cobra.NoArgs,
	RunE: runActivity,
}

func init() {
	activityCmd.Flags().StringVar(&activitySince, "since", "-1d", "Only events after this time")
	activityCmd.Flags().StringVar(&activityActor, "actor-filter", "", "Only events by this actor")
	activityCmd.Flags().StringVar(&activityEventType, "event-type", "", "Only this event type")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 100, "Max events")
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, args []string) error {
	since, err := timeparse.Parse(activitySince, time.Now())
	if err != nil {
		FatalError("%v", err)
	}

	svc := flow.NewService(eng)
	entries, err := svc.Activity(cmd.Context(), storage.ActivityQuery{
		Since:     since,
		Actor:     activityActor,
		EventType: activityEventType,
		Limit:     activityLimit,
	})
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{"activity": entries})
	}
	if len(entries) == 0 {
		fmt.Println(ui.RenderMuted("no activity since " + since.Format(time.RFC3339)))
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %s %s",
			ui.RenderMuted(e.CreatedAt.Format("2006-01-02 15:04")),
			ui.RenderAccent(e.IssueID), e.EventType)
		if e.OldValue != "" || e.NewValue != "" {
			line += fmt.Sprintf(" %s → %s", e.OldValue, e.NewValue)
		}
		if e.Actor != "" {
			line += ui.RenderMuted(" by " + e.Actor)
		}
		fmt.Println(line)
	}
	return nil
}
