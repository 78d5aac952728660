package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/templates"
	"github.com/weftworks/weft/internal/ui"
)

var packsCmd = &cobra.Command{
	Use:     "packs",
	GroupID: "workflow",
	Short:   "Manage workflow packs",
	Long: `A pack bundles issue type templates under a name and version. Builtin
packs (core, planning) ship with weft; more can be installed from JSON
files into the project's packs directory.`,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known packs and their status",
	Args:  cobra.NoArgs,
	RunE:  runPacksList,
}

var packsInstallCmd = &cobra.Command{
	Use:   "install <file>",
	Short: "Install a pack from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksInstall,
}

var packsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a pack for this project",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksEnable,
}

var packsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a pack for this project",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksDisable,
}

func init() {
	packsCmd.AddCommand(packsListCmd)
	packsCmd.AddCommand(packsInstallCmd)
	packsCmd.AddCommand(packsEnableCmd)
	packsCmd.AddCommand(packsDisableCmd)
	rootCmd.AddCommand(packsCmd)
}

func runPacksList(cmd *cobra.Command, args []string) error {
	infos := registry.ListPacks()
	if jsonOutput {
		type packRow struct {
			Name    string `json:"name"`
			Version string `json:"version"`
			Types   int    `json:"types"`
			Builtin bool   `json:"builtin"`
			Enabled bool   `json:"enabled"`
			Source  string `json:"source"`
		}
		rows := make([]packRow, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, packRow{
				Name:    info.Pack.Name,
				Version: info.Pack.Version,
				Types:   len(info.Pack.Types),
				Builtin: info.Builtin,
				Enabled: info.Enabled,
				Source:  info.Source,
			})
		}
		return outputJSON(map[string]interface{}{"packs": rows})
	}

	for _, info := range infos {
		mark := ui.RenderSkipIcon()
		if info.Enabled {
			mark = ui.RenderPassIcon()
		}
		origin := "installed"
		if info.Builtin {
			origin = "builtin"
		}
		fmt.Printf("%s %s %s %s (%d types)\n",
			mark, info.Pack.Name,
			ui.RenderMuted("v"+info.Pack.Version),
			ui.RenderMuted(origin),
			len(info.Pack.Types))
	}
	return nil
}

func runPacksInstall(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0]) // #nosec G304 - user-supplied path
	if err != nil {
		FatalError("reading pack file: %v", err)
	}
	pack, warnings, err := templates.ParsePack(data)
	if err != nil {
		fatal(err)
	}
	for _, w := range warnings {
		WarnError("%s", w)
	}

	// Installing over a newer version is allowed but loud.
	for _, info := range registry.ListPacks() {
		if info.Pack.Name != pack.Name || info.Builtin {
			continue
		}
		if templates.ComparePackVersions(pack.Version, info.Pack.Version) < 0 {
			WarnError("downgrading pack %s from v%s to v%s",
				pack.Name, info.Pack.Version, pack.Version)
		}
	}

	packsDir := configfile.PacksPath(weftDir)
	if err := os.MkdirAll(packsDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(packsDir, pack.Name+".json")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}

	if !projectCfg.PackEnabled(pack.Name) {
		projectCfg.EnabledPacks = append(projectCfg.EnabledPacks, pack.Name)
		if err := configfile.Save(weftDir, projectCfg); err != nil {
			return err
		}
	}
	registry.Reload()

	if jsonOutput {
		return outputJSON(map[string]interface{}{
			"installed": pack.Name,
			"version":   pack.Version,
			"types":     len(pack.Types),
		})
	}
	fmt.Printf("%s installed pack %s v%s (%d types)\n",
		ui.RenderPassIcon(), pack.Name, pack.Version, len(pack.Types))
	return nil
}

func runPacksEnable(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !knownPack(name) {
		FatalErrorWithHint(fmt.Sprintf("unknown pack %q", name), "see 'weft packs list'")
	}
	if projectCfg.PackEnabled(name) {
		fmt.Println(ui.RenderMuted("already enabled"))
		return nil
	}
	projectCfg.EnabledPacks = append(projectCfg.EnabledPacks, name)
	if err := configfile.Save(weftDir, projectCfg); err != nil {
		return err
	}
	registry.Reload()
	fmt.Printf("%s enabled pack %s\n", ui.RenderPassIcon(), name)
	return nil
}

func runPacksDisable(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !projectCfg.PackEnabled(name) {
		fmt.Println(ui.RenderMuted("already disabled"))
		return nil
	}
	kept := projectCfg.EnabledPacks[:0]
	for _, p := range projectCfg.EnabledPacks {
		if p != name {
			kept = append(kept, p)
		}
	}
	projectCfg.EnabledPacks = kept
	if err := configfile.Save(weftDir, projectCfg); err != nil {
		return err
	}
	registry.Reload()
	fmt.Printf("%s disabled pack %s\n", ui.RenderPassIcon(), name)
	return nil
}

func knownPack(name string) bool {
	for _, info := range registry.ListPacks() {
		if info.Pack.Name == name {
			return true
		}
	}
	return false
}
