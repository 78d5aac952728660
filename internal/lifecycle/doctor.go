package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckResult grades one doctor probe.
type CheckResult struct {
	Name   string
	Status CheckStatus
	Detail string
}

// CheckStatus is the severity of a doctor finding.
type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// EphemeralChecks inspects the project's dashboard instance files. No
// instance at all is fine; recorded state that no longer matches a live
// process is worth flagging.
func EphemeralChecks(weftDir string) []CheckResult {
	var out []CheckResult
	pidPath := filepath.Join(weftDir, ephemeralPIDFile)
	if _, err := os.Stat(pidPath); os.IsNotExist(err) {
		return append(out, CheckResult{
			Name:   "dashboard",
			Status: CheckOK,
			Detail: "no ephemeral instance recorded",
		})
	}
	st := probeEphemeral(weftDir)
	switch {
	case st.Running:
		out = append(out, CheckResult{
			Name:   "dashboard",
			Status: CheckOK,
			Detail: fmt.Sprintf("running, pid %d on %s", st.PID, st.URL),
		})
	case st.PID != 0:
		detail := fmt.Sprintf("recorded pid %d is not serving; it will be reaped on next start", st.PID)
		if tail := tailFile(filepath.Join(weftDir, ephemeralLogFile), 1024); tail != "" {
			detail += "\nlast log output:\n" + tail
		}
		out = append(out, CheckResult{Name: "dashboard", Status: CheckWarn, Detail: detail})
	default:
		out = append(out, CheckResult{
			Name:   "dashboard",
			Status: CheckWarn,
			Detail: "instance files are unreadable; remove ephemeral.pid and ephemeral.port",
		})
	}
	return out
}

// ServerChecks inspects server mode: daemon liveness plus whether every
// registered project directory still exists.
func ServerChecks(configDir string) []CheckResult {
	var out []CheckResult
	st, err := CheckServer(configDir)
	if err != nil {
		return append(out, CheckResult{
			Name:   "server",
			Status: CheckFail,
			Detail: err.Error(),
		})
	}
	if st.Running {
		out = append(out, CheckResult{
			Name:   "server",
			Status: CheckOK,
			Detail: fmt.Sprintf("running, pid %d on port %d", st.PID, st.Port),
		})
	} else if st.PID != 0 {
		out = append(out, CheckResult{
			Name:   "server",
			Status: CheckWarn,
			Detail: fmt.Sprintf("pid file records %d but nothing is serving port %d", st.PID, st.Port),
		})
	} else {
		out = append(out, CheckResult{Name: "server", Status: CheckOK, Detail: "not running"})
	}
	for _, dir := range (&ServerConfig{Projects: st.Projects}).SortedProjectDirs() {
		if _, err := os.Stat(dir); err != nil {
			out = append(out, CheckResult{
				Name:   "server projects",
				Status: CheckWarn,
				Detail: fmt.Sprintf("registered directory %s is gone; run weft server unregister %s", dir, dir),
			})
		}
	}
	return out
}
