// Command weft is an agent-oriented issue tracker and workflow engine.
// Project data lives in a .weft directory discovered by walking up from
// the working directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/debug"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/idgen"
	"github.com/weftworks/weft/internal/storage"
	"github.com/weftworks/weft/internal/storage/sqlite"
	"github.com/weftworks/weft/internal/summary"
	"github.com/weftworks/weft/internal/telemetry"
	"github.com/weftworks/weft/internal/templates"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	actorFlag   string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	weftDir     string
	projectCfg  *configfile.Config
	store       storage.Store
	sqliteStore *sqlite.Store
	registry    *templates.Registry
	eng         *engine.Engine

	// summaryHook is retained so the dashboard can chain change
	// broadcasting after it without losing summary regeneration.
	summaryHook engine.MutationHook

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// noProjectCommands run without a .weft directory. Everything else goes
// through project discovery and store open.
var noProjectCommands = map[string]bool{
	"init":       true,
	"version":    true,
	"server":     true,
	"help":       true,
	"completion": true,
}

func commandNeedsProject(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if noProjectCommands[c.Name()] {
			return false
		}
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:           "weft",
	Short:         "weft - workflow-aware issue tracker for agents and humans",
	Long:          "Issues with per-type state machines, dependency tracking, and a local dashboard.\nDesigned so coding agents can claim, advance, and close work without trampling each other.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Phase 1: ambient setup for every command.
		setupSignalContext()
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		if err := config.Initialize(); err != nil {
			WarnError("failed to initialize config: %v", err)
		}
		if cmd.Flags().Changed("json") {
			config.Set("json", jsonOutput)
		}
		jsonOutput = config.GetBool("json")

		// Phase 2: commands that run without a project.
		if !commandNeedsProject(cmd) {
			return nil
		}

		// Phase 3: project discovery.
		dir, err := configfile.FindFromCwd()
		if err != nil {
			return err
		}
		weftDir = dir
		projectCfg, err = configfile.Load(weftDir)
		if err != nil {
			return fmt.Errorf("reading project config: %w", err)
		}

		// Phase 4: store, registry, engine.
		if err := telemetry.Init(rootCtx, "weft", Version); err != nil {
			WarnError("telemetry init failed: %v", err)
		}
		st, err := sqlite.New(rootCtx, configfile.DatabasePath(weftDir))
		if err != nil {
			return err
		}
		sqliteStore = st
		store = telemetry.WrapStore(st)

		registry = templates.New(weftDir)
		registry.Load()
		for _, w := range registry.Warnings() {
			WarnError("template registry: %s", w)
		}

		eng = engine.New(store, registry, idgen.New(projectCfg.Prefix))
		if !config.GetBool("no-summary") {
			gen := summary.NewGenerator(eng, configfile.SummaryPath(weftDir))
			summaryHook = gen.Hook()
			eng.SetAfterMutation(summaryHook)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				debug.Logf("store close: %v", err)
			}
		}
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	if rootCtx != nil {
		return
	}
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// projectRoot is the directory that contains .weft, used for the
// deterministic dashboard port.
func projectRoot() string {
	return filepath.Dir(weftDir)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor name for the audit trail (default: $WEFT_ACTOR, user config, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "issues", Title: "Working With Issues:"},
		&cobra.Group{ID: "views", Title: "Views & Reports:"},
		&cobra.Group{ID: "workflow", Title: "Workflows & Templates:"},
		&cobra.Group{ID: "setup", Title: "Setup & Serving:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
