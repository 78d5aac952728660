package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/ui"
)

var metricsDays int

var metricsCmd = &cobra.Command{
	Use:     "metrics",
	GroupID: "views",
	Short:   "Show flow metrics for a trailing window",
	Long: `Reports throughput, cycle time (first work start to close), and lead
time (creation to close) for issues closed within the window.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().IntVar(&metricsDays, "days", 30, "Trailing window in days")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	m, err := flow.NewService(eng).Metrics(cmd.Context(), metricsDays)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(m)
	}

	fmt.Printf("%s last %d days\n", ui.RenderCategory("flow"), m.WindowDays)
	fmt.Printf("throughput: %d closed\n", m.Throughput)
	fmt.Printf("cycle time: %s\n", renderDurations(m.CycleTime))
	fmt.Printf("lead time:  %s\n", renderDurations(m.LeadTime))

	if len(m.PerType) > 0 {
		fmt.Println("by type:")
		names := make([]string, 0, len(m.PerType))
		for name := range m.PerType {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			tm := m.PerType[name]
			fmt.Printf("  %-10s %d closed, cycle %s, lead %s\n",
				name, tm.Throughput,
				renderDurations(tm.CycleTime), renderDurations(tm.LeadTime))
		}
	}
	return nil
}

func renderDurations(s flow.DurationStats) string {
	if s.Count == 0 {
		return ui.RenderMuted("no samples")
	}
	return fmt.Sprintf("mean %.1fh, median %.1fh (%d)", s.MeanHours(), s.MedianHours(), s.Count)
}
