package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/types"
)

var appDirsResolver = appdirs.Resolve

func resolveProjectRoot() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return appdirs.ProjectRootFor(dirs), nil
}

// resolveProjectDownloadPath maps a file under the project root to the
// path it is served at below /api/file.
func resolveProjectDownloadPath(localPath string) (string, error) {
	projectRoot, err := resolveProjectRoot()
	if err != nil {
		return "", err
	}

	cleanedLocalPath := filepath.Clean(localPath)
	relPath, err := filepath.Rel(projectRoot, cleanedLocalPath)
	if err != nil {
		return "", err
	}
	if relPath == "." || relPath == "" {
		return "", fmt.Errorf("project file path %q is not a file path", localPath)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("project file path %q is outside project root %q", localPath, projectRoot)
	}
	return filepath.ToSlash(filepath.Join(appdirs.ProjectRootName, relPath)), nil
}

// sceneLinks returns download paths for the media files of sc that live
// under the project root, keyed by "<track>.<slot>". Relative paths are
// taken relative to projectPath.
func sceneLinks(projectPath string, sc *types.Scene) map[string]string {
	links := make(map[string]string)
	for _, track := range types.Tracks {
		ref := sc.Media(track)
		slots := map[string]string{
			"video":      ref.Video,
			"audio":      ref.Audio,
			"image":      ref.Image,
			"image_last": ref.ImageLast,
		}
		for slot, local := range slots {
			if local == "" {
				continue
			}
			if !filepath.IsAbs(local) {
				local = filepath.Join(projectPath, local)
			}
			if link, err := resolveProjectDownloadPath(local); err == nil {
				links[string(track)+"."+slot] = link
			}
		}
	}
	return links
}
