// Package appdirs decides where an installation keeps its files: the
// application config and logs, the sqlite index and media temp files, and the
// workspace holding project directories and `<pid>.config` files.
package appdirs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

const (
	PortableEnv = "MAGICFLOW_PORTABLE"
	// WorkDirEnv moves the project root, ahead of [app].work_dir.
	WorkDirEnv = "MAGICFLOW_WORK_DIR"

	configFileName = "config.toml"
	portableData   = "data"
)

// Paths is the on-disk layout of one installation.
//
// ProjectRoot and ProjectConfigDir describe the workspace. Left empty they
// fall back to `<OutputDir>/projects` and ConfigDir.
type Paths struct {
	Portable   bool
	ConfigDir  string
	ConfigFile string
	LogDir     string
	OutputDir  string
	CacheDir   string

	ProjectRoot      string
	ProjectConfigDir string
}

// Workspace is the part of the layout set from [app] in config.toml.
type Workspace struct {
	WorkDir   string
	ConfigDir string
}

var workspace struct {
	mu sync.RWMutex
	ws Workspace
}

// SetWorkspace applies the configured workspace to every later Resolve.
func SetWorkspace(ws Workspace) {
	workspace.mu.Lock()
	defer workspace.mu.Unlock()
	workspace.ws = ws
}

func currentWorkspace() Workspace {
	workspace.mu.RLock()
	defer workspace.mu.RUnlock()
	return workspace.ws
}

type resolveDeps struct {
	goos       string
	getenv     func(string) string
	executable func() (string, error)
	workspace  Workspace
}

func Resolve() (Paths, error) {
	return resolve(resolveDeps{
		goos:       runtime.GOOS,
		getenv:     os.Getenv,
		executable: os.Executable,
		workspace:  currentWorkspace(),
	})
}

func resolve(rawDeps resolveDeps) (Paths, error) {
	deps := withDefaults(rawDeps)

	var paths Paths
	if isPortableEnabled(deps.getenv(PortableEnv)) || deps.goos == "windows" {
		executablePath, err := deps.executable()
		if err != nil {
			return Paths{}, err
		}
		paths = portableLayout(filepath.Join(filepath.Dir(executablePath), portableData))
	} else {
		paths = relativeLayout()
	}

	ws := deps.workspace
	if env := strings.TrimSpace(deps.getenv(WorkDirEnv)); env != "" {
		ws.WorkDir = env
	}
	return paths.WithWorkspace(ws), nil
}

func withDefaults(deps resolveDeps) resolveDeps {
	if deps.goos == "" {
		deps.goos = runtime.GOOS
	}
	if deps.getenv == nil {
		deps.getenv = os.Getenv
	}
	if deps.executable == nil {
		deps.executable = os.Executable
	}
	return deps
}

// portableLayout keeps everything below dataDir next to the executable.
func portableLayout(dataDir string) Paths {
	configDir := filepath.Join(dataDir, "config")
	return Paths{
		Portable:   true,
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, configFileName),
		LogDir:     filepath.Join(dataDir, "logs"),
		OutputDir:  filepath.Join(dataDir, "output"),
		CacheDir:   filepath.Join(dataDir, "cache"),
	}
}

// relativeLayout resolves against the working directory.
func relativeLayout() Paths {
	configDir := "config"
	return Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, configFileName),
		LogDir:     ".",
		OutputDir:  ".",
		CacheDir:   "cache",
	}
}

// WithWorkspace returns p with the non-empty workspace dirs applied.
func (p Paths) WithWorkspace(ws Workspace) Paths {
	if dir := strings.TrimSpace(ws.WorkDir); dir != "" {
		p.ProjectRoot = filepath.Clean(dir)
	}
	if dir := strings.TrimSpace(ws.ConfigDir); dir != "" {
		p.ProjectConfigDir = filepath.Clean(dir)
	}
	return p
}

func isPortableEnabled(value string) bool {
	normalized := strings.TrimSpace(strings.ToLower(value))
	return normalized == "1" || normalized == "true"
}
