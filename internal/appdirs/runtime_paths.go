package appdirs

import (
	"path/filepath"
	"strings"
)

const (
	ProjectRootName     = "projects"
	MediaTempName       = "media"
	projectConfigSuffix = ".config"
	dbFileName          = "magicflow.db"
)

// ProjectRootFor is the parent of project directories whose config does not
// name its own project_path.
func ProjectRootFor(paths Paths) string {
	if root := strings.TrimSpace(paths.ProjectRoot); root != "" {
		return filepath.Clean(root)
	}
	return filepath.Join(normalizeOutputDir(paths.OutputDir), ProjectRootName)
}

func ProjectDirFor(paths Paths, pid string) string {
	return filepath.Join(ProjectRootFor(paths), pid)
}

// ProjectConfigPathFor returns `<project config dir>/<pid>.config`.
func ProjectConfigPathFor(paths Paths, pid string) string {
	dir := paths.ProjectConfigDir
	if strings.TrimSpace(dir) == "" {
		dir = paths.ConfigDir
	}
	return filepath.Join(normalizeConfigDir(dir), pid+projectConfigSuffix)
}

func MediaTempFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), MediaTempName)
}

func DBPathFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), dbFileName)
}

func normalizeOutputDir(outputDir string) string {
	cleaned := strings.TrimSpace(outputDir)
	if cleaned == "" {
		return "."
	}
	return filepath.Clean(cleaned)
}

func normalizeConfigDir(configDir string) string {
	cleaned := strings.TrimSpace(configDir)
	if cleaned == "" {
		return "config"
	}
	return filepath.Clean(cleaned)
}

func normalizeCacheDir(cacheDir string) string {
	cleaned := strings.TrimSpace(cacheDir)
	if cleaned == "" {
		return "cache"
	}
	return filepath.Clean(cleaned)
}
