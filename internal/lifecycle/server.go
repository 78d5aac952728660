package lifecycle

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/weftworks/weft/internal/lockfile"
)

const (
	serverConfigFile = "server.toml"
	serverPIDFile    = "server.pid"
	serverLogFile    = "server.log"

	// DefaultServerPort is where the multi-project server listens unless
	// server.toml overrides it.
	DefaultServerPort = 8399
)

// ServerProject is one registered project in server mode.
type ServerProject struct {
	Prefix string `toml:"prefix"`
}

// ServerConfig is the persisted server-mode configuration. Projects is
// keyed by resolved project directory.
type ServerConfig struct {
	Port     int                      `toml:"port"`
	Projects map[string]ServerProject `toml:"projects"`
}

// ServerStatus describes the server daemon.
type ServerStatus struct {
	Running  bool
	PID      int
	Port     int
	Projects map[string]ServerProject
}

// ConfigDir returns the per-user weft configuration directory, creating it
// if needed.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	dir := filepath.Join(base, "weft")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// LoadServerConfig reads server.toml from configDir. A missing file yields
// an empty config with the default port.
func LoadServerConfig(configDir string) (*ServerConfig, error) {
	cfg := &ServerConfig{Port: DefaultServerPort, Projects: map[string]ServerProject{}}
	path := filepath.Join(configDir, serverConfigFile)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultServerPort
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]ServerProject{}
	}
	return cfg, nil
}

// SaveServerConfig writes server.toml atomically.
func SaveServerConfig(configDir string, cfg *ServerConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding server config: %w", err)
	}
	return writeFileAtomic(filepath.Join(configDir, serverConfigFile), buf.Bytes())
}

// RegisterProject adds or updates a project registration. prefix defaults
// to the directory's base name; collisions with another project's prefix
// are rejected so URLs stay unambiguous.
func RegisterProject(configDir, resolvedDir, prefix string) (*ServerConfig, error) {
	cfg, err := LoadServerConfig(configDir)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = filepath.Base(resolvedDir)
	}
	for dir, p := range cfg.Projects {
		if dir != resolvedDir && p.Prefix == prefix {
			return nil, fmt.Errorf("prefix %q already used by %s", prefix, dir)
		}
	}
	cfg.Projects[resolvedDir] = ServerProject{Prefix: prefix}
	if err := SaveServerConfig(configDir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnregisterProject removes a project registration. Unknown directories
// are an error so typos surface instead of silently succeeding.
func UnregisterProject(configDir, resolvedDir string) (*ServerConfig, error) {
	cfg, err := LoadServerConfig(configDir)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Projects[resolvedDir]; !ok {
		return nil, fmt.Errorf("%s is not registered", resolvedDir)
	}
	delete(cfg.Projects, resolvedDir)
	if err := SaveServerConfig(configDir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SortedProjectDirs returns registration keys in stable order for output.
func (c *ServerConfig) SortedProjectDirs() []string {
	dirs := make([]string, 0, len(c.Projects))
	for d := range c.Projects {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// CheckServer reports whether the server daemon is running, from its pid
// file plus a port probe.
func CheckServer(configDir string) (ServerStatus, error) {
	cfg, err := LoadServerConfig(configDir)
	if err != nil {
		return ServerStatus{}, err
	}
	st := ServerStatus{Port: cfg.Port, Projects: cfg.Projects}
	pid, err := readIntFile(filepath.Join(configDir, serverPIDFile))
	if err != nil {
		return st, nil
	}
	st.PID = pid
	st.Running = lockfile.ProcessAlive(pid) && portAccepting(cfg.Port)
	return st, nil
}

// StartServer spawns the server daemon unless one is already running.
func StartServer(configDir string, spawn SpawnFunc) (ServerStatus, error) {
	st, err := CheckServer(configDir)
	if err != nil {
		return ServerStatus{}, err
	}
	if st.Running {
		return st, nil
	}
	logPath := filepath.Join(configDir, serverLogFile)
	pid, err := spawn(st.Port, logPath)
	if err != nil {
		return ServerStatus{}, fmt.Errorf("starting server: %w", err)
	}
	if err := writeIntFile(filepath.Join(configDir, serverPIDFile), pid); err != nil {
		return ServerStatus{}, err
	}
	st.PID = pid
	st.Running = true
	return st, nil
}

// StopServer sends SIGTERM to the recorded daemon and removes the pid
// file. A missing pid file means nothing to stop.
func StopServer(configDir string) error {
	pidPath := filepath.Join(configDir, serverPIDFile)
	pid, err := readIntFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("server is not running")
		}
		return err
	}
	if lockfile.ProcessAlive(pid) {
		if err := terminateProcess(pid); err != nil {
			return fmt.Errorf("stopping server pid %d: %w", pid, err)
		}
	}
	return os.Remove(pidPath)
}

// RecordServerPID is called by the daemon itself after binding, so status
// reflects the live process even when it was started by hand.
func RecordServerPID(configDir string) error {
	return writeIntFile(filepath.Join(configDir, serverPIDFile), os.Getpid())
}
