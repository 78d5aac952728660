package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/lifecycle"
	"github.com/weftworks/weft/internal/ui"
)

var doctorCompactEvents bool

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "setup",
	Short:   "Check project health",
	Long: `Probes the database, template registry, and dashboard lifecycle state
and reports anything off. --compact-events trims old audit rows while
keeping each issue's recent history.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorCompactEvents, "compact-events", false, "Trim old audit events (keeps the newest 100 per issue)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var checks []lifecycle.CheckResult

	version, err := sqliteStore.SchemaVersion(ctx)
	if err != nil {
		checks = append(checks, lifecycle.CheckResult{
			Name: "database", Status: lifecycle.CheckFail, Detail: err.Error(),
		})
	} else {
		checks = append(checks, lifecycle.CheckResult{
			Name: "database", Status: lifecycle.CheckOK,
			Detail: fmt.Sprintf("schema version %d", version),
		})
	}

	if warnings := registry.Warnings(); len(warnings) > 0 {
		for _, w := range warnings {
			checks = append(checks, lifecycle.CheckResult{
				Name: "templates", Status: lifecycle.CheckWarn, Detail: w,
			})
		}
	} else {
		checks = append(checks, lifecycle.CheckResult{
			Name: "templates", Status: lifecycle.CheckOK,
			Detail: fmt.Sprintf("%d types loaded", len(registry.ListTypes())),
		})
	}

	checks = append(checks, lifecycle.EphemeralChecks(weftDir)...)
	if configDir, err := lifecycle.ConfigDir(); err == nil {
		checks = append(checks, lifecycle.ServerChecks(configDir)...)
	}

	if doctorCompactEvents {
		removed, err := eng.CompactEvents(ctx, 100)
		if err != nil {
			checks = append(checks, lifecycle.CheckResult{
				Name: "events", Status: lifecycle.CheckFail, Detail: err.Error(),
			})
		} else {
			checks = append(checks, lifecycle.CheckResult{
				Name: "events", Status: lifecycle.CheckOK,
				Detail: fmt.Sprintf("compacted %d old events", removed),
			})
		}
	}

	if jsonOutput {
		return outputJSON(map[string]interface{}{"checks": checks})
	}

	failed := 0
	for _, c := range checks {
		fmt.Printf("%s %s: %s\n", doctorMark(c.Status), c.Name, c.Detail)
		if c.Status == lifecycle.CheckFail {
			failed++
		}
	}
	if failed > 0 {
		FatalError("%d check(s) failed", failed)
	}
	fmt.Println(ui.RenderMuted("\nall checks passed"))
	return nil
}

func doctorMark(status lifecycle.CheckStatus) string {
	switch status {
	case lifecycle.CheckOK:
		return color.GreenString("✓")
	case lifecycle.CheckWarn:
		return color.YellowString("!")
	default:
		return color.RedString("✗")
	}
}
