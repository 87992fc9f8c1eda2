package handler

import (
	"os"
	"path/filepath"
	"strings"

	"magic-workflow/internal/appdirs"
)

var appDirsResolver = appdirs.Resolve

// projectRootCandidates lists where /api/file/projects/... may live: the
// resolved installation root first, then a projects dir beside the binary.
func projectRootCandidates() []string {
	candidates := make([]string, 0, 2)
	if dirs, err := appDirsResolver(); err == nil {
		candidates = append(candidates, appdirs.ProjectRootFor(dirs))
	}
	candidates = append(candidates, appdirs.ProjectRootName)
	return uniquePaths(candidates...)
}

// resolveDownloadPath maps a request path to a file below a project root.
// Only paths under the "projects" alias are served.
func resolveDownloadPath(requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	requested = strings.TrimPrefix(requested, string(filepath.Separator))
	requested = strings.TrimPrefix(requested, "/")
	if hasParentTraversal(requested) {
		return "", false
	}
	requested = filepath.ToSlash(filepath.Clean(requested))

	prefix := appdirs.ProjectRootName + "/"
	if !strings.HasPrefix(requested, prefix) {
		return "", false
	}
	relativePath := filepath.FromSlash(strings.TrimPrefix(requested, prefix))

	var fallback string
	for _, rootDir := range projectRootCandidates() {
		candidate := filepath.Clean(filepath.Join(rootDir, relativePath))
		if !isPathWithinRoot(rootDir, candidate) {
			continue
		}
		if fallback == "" {
			fallback = candidate
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	if fallback == "" {
		return "", false
	}
	return fallback, true
}

func uniquePaths(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	paths := make([]string, 0, len(values))
	for _, value := range values {
		cleaned := strings.TrimSpace(value)
		if cleaned == "" {
			continue
		}
		cleaned = filepath.Clean(cleaned)
		if _, exists := seen[cleaned]; exists {
			continue
		}
		seen[cleaned] = struct{}{}
		paths = append(paths, cleaned)
	}
	return paths
}

func isPathWithinRoot(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasParentTraversal(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
