package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/storage/sqlite"
	"github.com/weftworks/weft/internal/ui"
)

var (
	initPrefix string
	initMode   string
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Create a .weft project in the current directory",
	Long: `Creates the .weft data directory, config.json, and an empty database.
Without flags on an interactive terminal, prompts for the settings.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPrefix, "prefix", "", "Issue id prefix (e.g. wf for wf-a3k9f)")
	initCmd.Flags().StringVar(&initMode, "mode", configfile.ModeEthereal, "Dashboard mode: ethereal or server")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	projectDir := filepath.Join(cwd, configfile.DirName)
	if configfile.Exists(projectDir) {
		FatalErrorWithHint(
			fmt.Sprintf("%s already initialized", projectDir),
			"remove "+filepath.Join(projectDir, configfile.ConfigName)+" to start over",
		)
	}

	// Interactive form only when attached to a terminal and the prefix was
	// not given; flags always win.
	if initPrefix == "" && ui.IsTerminal() && !ui.IsAgentMode() {
		if err := runInitForm(filepath.Base(cwd)); err != nil {
			return err
		}
	}
	if initPrefix == "" {
		initPrefix = defaultPrefix(filepath.Base(cwd))
	}

	cfg := configfile.Default()
	cfg.Prefix = initPrefix
	cfg.Mode = initMode
	if err := cfg.Validate(); err != nil {
		FatalError("%v", err)
	}

	if err := configfile.Init(projectDir, cfg); err != nil {
		return err
	}

	// Open once so the schema exists before the first real command.
	st, err := sqlite.New(cmd.Context(), configfile.DatabasePath(projectDir))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := st.Close(); err != nil {
		return err
	}

	fmt.Printf("%s initialized %s (prefix %s, mode %s)\n",
		ui.RenderPassIcon(), projectDir, cfg.Prefix, cfg.Mode)
	return nil
}

func runInitForm(dirName string) error {
	suggested := defaultPrefix(dirName)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Issue id prefix").
				Description("Short tag for issue ids, e.g. "+suggested+"-a3k9f").
				Placeholder(suggested).
				Value(&initPrefix),
			huh.NewSelect[string]().
				Title("Dashboard mode").
				Options(
					huh.NewOption("ethereal - per-project instance, on demand", configfile.ModeEthereal),
					huh.NewOption("server - one long-running daemon for all projects", configfile.ModeServer),
				).
				Value(&initMode),
		),
	)
	return form.Run()
}

// defaultPrefix derives an id prefix from a directory name: lowercase
// letters and digits only, max 6 runes, "wf" when nothing usable remains.
func defaultPrefix(dirName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(dirName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9' && b.Len() > 0) {
			b.WriteRune(r)
			if b.Len() >= 6 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "wf"
	}
	return b.String()
}
