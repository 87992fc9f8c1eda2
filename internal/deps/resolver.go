package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"magic-workflow/config"
	"magic-workflow/log"
)

type DependencyTier string

const (
	DependencyTierMust     DependencyTier = "must"
	DependencyTierOptional DependencyTier = "optional"
)

type DependencyStatus string

const (
	DependencyStatusOK      DependencyStatus = "ok"
	DependencyStatusMissing DependencyStatus = "missing"
	DependencyStatusError   DependencyStatus = "error"
)

type DependencySource string

const (
	DependencySourceConfig   DependencySource = "config"
	DependencySourceLookPath DependencySource = "lookpath"
)

type DependencySpec struct {
	ID             string
	Command        string
	Tier           DependencyTier
	ConfiguredPath string
	Hint           string
}

type DependencyState struct {
	DependencySpec
	ResolvedPath string
	Status       DependencyStatus
	Source       DependencySource
	Error        string
}

// Binaries are the resolved executables the media processor runs.
type Binaries struct {
	Ffmpeg  string
	Ffprobe string
}

type PathResolver struct {
	LookPath func(file string) (string, error)
	AbsPath  func(path string) (string, error)
	Stat     func(name string) (os.FileInfo, error)
}

func NewPathResolver() PathResolver {
	return PathResolver{
		LookPath: exec.LookPath,
		AbsPath:  filepath.Abs,
		Stat:     os.Stat,
	}
}

// Resolve prefers the configured path and falls back to PATH lookup of the
// command name only when nothing is configured.
func (r PathResolver) Resolve(spec DependencySpec) DependencyState {
	state := DependencyState{DependencySpec: spec}
	configured := strings.TrimSpace(spec.ConfiguredPath)

	if configured != "" {
		state.Source = DependencySourceConfig
		resolvedPath, err := r.resolveConfiguredPath(configured)
		if err == nil {
			state.Status = DependencyStatusOK
			state.ResolvedPath = resolvedPath
			return state
		}

		if absPath, absErr := r.AbsPath(configured); absErr == nil {
			state.ResolvedPath = absPath
		} else {
			state.ResolvedPath = configured
		}
		state.Error = err.Error()
		state.Status = statusForError(err)
		return state
	}

	state.Source = DependencySourceLookPath
	resolvedPath, err := r.LookPath(spec.Command)
	if err == nil {
		state.Status = DependencyStatusOK
		state.ResolvedPath = resolvedPath
		return state
	}
	state.Error = err.Error()
	state.Status = statusForError(err)
	return state
}

func (r PathResolver) resolveConfiguredPath(configuredPath string) (string, error) {
	if resolvedPath, err := r.LookPath(configuredPath); err == nil {
		return resolvedPath, nil
	}

	absPath, err := r.AbsPath(configuredPath)
	if err != nil {
		return "", err
	}
	if _, err = r.Stat(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

func BuildDependencyInventory(media config.Media) []DependencySpec {
	return []DependencySpec{
		{
			ID:             "ffmpeg",
			Command:        "ffmpeg",
			Tier:           DependencyTierMust,
			ConfiguredPath: media.FfmpegPath,
			Hint:           "Required to trim, split, concatenate and re-mux scene media.",
		},
		{
			ID:             "ffprobe",
			Command:        "ffprobe",
			Tier:           DependencyTierMust,
			ConfiguredPath: media.FfprobePath,
			Hint:           "Required to measure scene durations.",
		},
	}
}

func ResolveDependencyStates(specs []DependencySpec, resolver PathResolver) []DependencyState {
	resolved := make([]DependencyState, 0, len(specs))
	for _, spec := range specs {
		resolved = append(resolved, resolver.Resolve(spec))
	}
	return resolved
}

// ResolveBinaries resolves ffmpeg and ffprobe and fails when either is unusable.
func ResolveBinaries(media config.Media, resolver PathResolver) (Binaries, error) {
	states := ResolveDependencyStates(BuildDependencyInventory(media), resolver)

	var bins Binaries
	var problems []string
	for _, state := range states {
		if state.Status != DependencyStatusOK {
			if state.Tier == DependencyTierMust {
				problems = append(problems, fmt.Sprintf("%s: %s", state.ID, state.Error))
			}
			continue
		}
		switch state.ID {
		case "ffmpeg":
			bins.Ffmpeg = state.ResolvedPath
		case "ffprobe":
			bins.Ffprobe = state.ResolvedPath
		}
	}
	if len(problems) > 0 {
		return bins, fmt.Errorf("missing dependencies: %s", strings.Join(problems, "; "))
	}
	return bins, nil
}

// CheckDependency resolves the configured binaries and logs the report.
func CheckDependency() (Binaries, error) {
	states := ResolveDependencyStates(BuildDependencyInventory(config.Conf.Media), NewPathResolver())
	for _, state := range states {
		log.GetLogger().Info("[Deps] dependency resolved",
			zap.String("id", state.ID),
			zap.String("status", string(state.Status)),
			zap.String("path", state.ResolvedPath),
			zap.String("source", string(state.Source)))
	}
	return ResolveBinaries(config.Conf.Media, NewPathResolver())
}

func FormatDependencyReport(states []DependencyState) string {
	if len(states) == 0 {
		return "No dependencies to diagnose."
	}

	var builder strings.Builder
	builder.WriteString("Dependency status")

	for _, state := range states {
		resolvedPath := strings.TrimSpace(state.ResolvedPath)
		if resolvedPath == "" {
			resolvedPath = "unknown"
		}
		source := strings.TrimSpace(string(state.Source))
		if source == "" {
			source = "n/a"
		}

		builder.WriteString(fmt.Sprintf("\n- %s [%s]: %s | path=%s | source=%s", state.ID, strings.ToUpper(string(state.Tier)), state.Status, resolvedPath, source))
		if state.Error != "" {
			builder.WriteString("\n  error: " + state.Error)
		}
		if state.Hint != "" {
			builder.WriteString("\n  hint: " + state.Hint)
		}
	}
	return builder.String()
}

func statusForError(err error) DependencyStatus {
	if isMissingPathError(err) {
		return DependencyStatusMissing
	}
	return DependencyStatusError
}

func isMissingPathError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "not found") || strings.Contains(message, "cannot find")
}
