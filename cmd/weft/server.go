package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/dashboard"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/idgen"
	"github.com/weftworks/weft/internal/lifecycle"
	"github.com/weftworks/weft/internal/storage/sqlite"
	"github.com/weftworks/weft/internal/summary"
	"github.com/weftworks/weft/internal/templates"
	"github.com/weftworks/weft/internal/ui"
)

var serverRegisterPrefix string

var serverCmd = &cobra.Command{
	Use:     "server",
	GroupID: "setup",
	Short:   "Run one long-lived dashboard for several projects",
	Long: `Server mode replaces per-project ephemeral dashboards with a single
daemon that hosts every registered project under its own URL prefix.
Registration lives in server.toml in the user config directory.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server daemon",
	Args:  cobra.NoArgs,
	RunE:  runServerStart,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server daemon",
	Args:  cobra.NoArgs,
	RunE:  runServerStop,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report daemon state and registered projects",
	Args:  cobra.NoArgs,
	RunE:  runServerStatus,
}

var serverRegisterCmd = &cobra.Command{
	Use:   "register [dir]",
	Short: "Register a project with the server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServerRegister,
}

var serverUnregisterCmd = &cobra.Command{
	Use:   "unregister [dir]",
	Short: "Remove a project registration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServerUnregister,
}

// serverRunCmd is the daemon entry point; server start spawns it detached.
var serverRunCmd = &cobra.Command{
	Use:    "run",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runServerRun,
}

func init() {
	serverRegisterCmd.Flags().StringVar(&serverRegisterPrefix, "prefix", "", "URL prefix (default: directory name)")
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverRegisterCmd)
	serverCmd.AddCommand(serverUnregisterCmd)
	serverCmd.AddCommand(serverRunCmd)
	rootCmd.AddCommand(serverCmd)
}

func resolveRegisterDir(args []string) string {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		FatalError("resolving %s: %v", dir, err)
	}
	if !configfile.Exists(filepath.Join(abs, configfile.DirName)) {
		FatalErrorWithHint(fmt.Sprintf("%s is not a weft project", abs), "run 'weft init' there first")
	}
	return abs
}

func runServerStart(cmd *cobra.Command, args []string) error {
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		fatal(err)
	}
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	spawn := func(port int, logPath string) (int, error) {
		return lifecycle.SpawnDetached(exe, []string{"server", "run"}, logPath)
	}
	st, err := lifecycle.StartServer(configDir, spawn)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(st)
	}
	fmt.Printf("%s server running at http://127.0.0.1:%d %s\n",
		ui.RenderPassIcon(), st.Port, ui.RenderMuted(fmt.Sprintf("(pid %d)", st.PID)))
	return nil
}

func runServerStop(cmd *cobra.Command, args []string) error {
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		fatal(err)
	}
	if err := lifecycle.StopServer(configDir); err != nil {
		fatal(err)
	}
	fmt.Printf("%s server stopped\n", ui.RenderPassIcon())
	return nil
}

func runServerStatus(cmd *cobra.Command, args []string) error {
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		fatal(err)
	}
	st, err := lifecycle.CheckServer(configDir)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(st)
	}
	if st.Running {
		fmt.Printf("server running at http://127.0.0.1:%d %s\n",
			st.Port, ui.RenderMuted(fmt.Sprintf("(pid %d)", st.PID)))
	} else {
		fmt.Println(ui.RenderMuted("server is not running"))
	}
	cfg := &lifecycle.ServerConfig{Projects: st.Projects}
	for _, dir := range cfg.SortedProjectDirs() {
		fmt.Printf("  /%s  %s\n", st.Projects[dir].Prefix, ui.RenderMuted(dir))
	}
	return nil
}

func runServerRegister(cmd *cobra.Command, args []string) error {
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		fatal(err)
	}
	dir := resolveRegisterDir(args)
	cfg, err := lifecycle.RegisterProject(configDir, dir, serverRegisterPrefix)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s registered %s as /%s\n", ui.RenderPassIcon(), dir, cfg.Projects[dir].Prefix)
	fmt.Println(ui.RenderMuted("restart the server to pick up the change"))
	return nil
}

func runServerUnregister(cmd *cobra.Command, args []string) error {
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		fatal(err)
	}
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := lifecycle.UnregisterProject(configDir, abs); err != nil {
		fatal(err)
	}
	fmt.Printf("%s unregistered %s\n", ui.RenderPassIcon(), abs)
	return nil
}

// runServerRun is the daemon body: one engine and dashboard per registered
// project, mounted under its prefix, all behind one listener.
func runServerRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	configDir, err := lifecycle.ConfigDir()
	if err != nil {
		return err
	}
	cfg, err := lifecycle.LoadServerConfig(configDir)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(&lumberjack.Logger{
		Filename:   filepath.Join(configDir, "server.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
	}, nil))

	mux := http.NewServeMux()
	var closers []func() error
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("store close", "error", err)
			}
		}
	}()

	mounted := map[string]string{}
	for _, dir := range cfg.SortedProjectDirs() {
		prefix := cfg.Projects[dir].Prefix
		projectDir := filepath.Join(dir, configfile.DirName)

		pcfg, err := configfile.Load(projectDir)
		if err != nil {
			logger.Warn("skipping project", "dir", dir, "error", err)
			continue
		}
		st, err := sqlite.New(ctx, configfile.DatabasePath(projectDir))
		if err != nil {
			logger.Warn("skipping project", "dir", dir, "error", err)
			continue
		}
		closers = append(closers, st.Close)

		reg := templates.New(projectDir)
		reg.Load()
		e := engine.New(st, reg, idgen.New(pcfg.Prefix))
		srv := dashboard.New(e, flow.NewService(e), logger.With("project", prefix))

		gen := summary.NewGenerator(e, configfile.SummaryPath(projectDir))
		hook := gen.Hook()
		e.SetAfterMutation(func(ctx context.Context) {
			hook(ctx)
			srv.NotifyChange()
		})

		mux.Handle("/"+prefix+"/", http.StripPrefix("/"+prefix, srv.Handler()))
		mounted[prefix] = dir
		logger.Info("mounted project", "prefix", prefix, "dir", dir)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<h1>weft server</h1><ul>")
		cfg2 := &lifecycle.ServerConfig{Projects: cfg.Projects}
		for _, dir := range cfg2.SortedProjectDirs() {
			p := cfg.Projects[dir].Prefix
			fmt.Fprintf(w, `<li><a href="/%s/">%s</a> — %s</li>`, p, p, dir)
		}
		fmt.Fprint(w, "</ul>")
	})

	if err := lifecycle.RecordServerPID(configDir); err != nil {
		logger.Warn("recording pid", "error", err)
	}

	addr := "127.0.0.1:" + strconv.Itoa(cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("server listening", "addr", addr, "projects", len(mounted))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
