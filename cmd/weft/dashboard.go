package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/dashboard"
	"github.com/weftworks/weft/internal/flow"
	"github.com/weftworks/weft/internal/lifecycle"
	"github.com/weftworks/weft/internal/ui"
)

var (
	dashForeground  bool
	dashPort        int
	dashHost        string
	dashAllowRemote bool
	dashToken       string
	dashStop        bool
	dashStatus      bool
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "setup",
	Short:   "Open the project dashboard",
	Long: `Starts (or reuses) the per-project dashboard and prints its URL. The
instance runs detached on a port derived from the project path, so every
session of the same project lands on the same dashboard.

With --foreground the server runs in this process instead, which is also
how the detached instance hosts itself.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashForeground, "foreground", false, "Run the server in this process")
	dashboardCmd.Flags().IntVar(&dashPort, "port", 0, "Port to listen on (foreground; 0 = derive from project path)")
	dashboardCmd.Flags().StringVar(&dashHost, "host", "127.0.0.1", "Address to bind (foreground)")
	dashboardCmd.Flags().BoolVar(&dashAllowRemote, "allow-remote", false, "Allow binding a non-loopback address")
	dashboardCmd.Flags().StringVar(&dashToken, "token", "", "Bearer token required when bound remotely")
	dashboardCmd.Flags().BoolVar(&dashStop, "stop", false, "Stop the detached instance")
	dashboardCmd.Flags().BoolVar(&dashStatus, "status", false, "Report the detached instance state")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	switch {
	case dashStop:
		if err := lifecycle.StopEphemeral(weftDir); err != nil {
			fatal(err)
		}
		fmt.Printf("%s dashboard stopped\n", ui.RenderPassIcon())
		return nil
	case dashStatus:
		return printDashboardStatus()
	case dashForeground:
		return runDashboardForeground(cmd.Context())
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	spawn := func(port int, logPath string) (int, error) {
		return lifecycle.SpawnDetached(exe,
			[]string{"dashboard", "--foreground", "--port", strconv.Itoa(port)},
			logPath)
	}
	st, err := lifecycle.EnsureEphemeral(weftDir, projectRoot(), spawn)
	if err != nil {
		fatal(err)
	}

	if jsonOutput {
		return outputJSON(st)
	}
	verb := "started"
	if st.Reused {
		verb = "already running"
	}
	fmt.Printf("%s dashboard %s at %s %s\n",
		ui.RenderPassIcon(), verb, st.URL, ui.RenderMuted(fmt.Sprintf("(pid %d)", st.PID)))
	return nil
}

func printDashboardStatus() error {
	st := lifecycle.CheckEphemeral(weftDir)
	if jsonOutput {
		return outputJSON(st)
	}
	if !st.Running {
		fmt.Println(ui.RenderMuted("dashboard is not running"))
		return nil
	}
	fmt.Printf("dashboard running at %s %s\n", st.URL, ui.RenderMuted(fmt.Sprintf("(pid %d)", st.PID)))
	return nil
}

// runDashboardForeground hosts the dashboard in this process until the
// context is cancelled. Detached instances re-enter here via the spawn
// arguments.
func runDashboardForeground(ctx context.Context) error {
	port := dashPort
	if port == 0 {
		port = lifecycle.DeterministicPort(projectRoot())
	}
	addr := net.JoinHostPort(dashHost, strconv.Itoa(port))

	requireAuth, err := ui.DetermineAccess(addr, dashAllowRemote)
	if err != nil {
		FatalErrorWithHint(err.Error(), "bind 127.0.0.1, or pass --allow-remote with --token")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := dashboard.New(eng, flow.NewService(eng), logger)

	// Chain change broadcasting after the summary hook so SSE clients and
	// the summary file both track every mutation.
	prior := summaryHook
	eng.SetAfterMutation(func(ctx context.Context) {
		if prior != nil {
			prior(ctx)
		}
		srv.NotifyChange()
	})

	handler := srv.Handler()
	if requireAuth {
		if dashToken == "" {
			FatalError("remote binds require --token")
		}
		authed, err := ui.RequireBearer(handler, dashToken)
		if err != nil {
			FatalError(err.Error())
		}
		handler = authed
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("dashboard listening", "addr", addr)

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
