package deps

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"magic-workflow/config"
)

func notFoundErr(command string) error {
	return &exec.Error{Name: command, Err: exec.ErrNotFound}
}

func TestPathResolverResolvePrefersConfiguredPath(t *testing.T) {
	binPath := filepath.Join(t.TempDir(), "ffmpeg-custom")
	if err := os.WriteFile(binPath, []byte("ffmpeg"), 0o755); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	resolver := NewPathResolver()
	resolver.LookPath = func(file string) (string, error) {
		return "", notFoundErr(file)
	}

	state := resolver.Resolve(DependencySpec{ID: "ffmpeg", Command: "ffmpeg", ConfiguredPath: binPath})

	if state.Status != DependencyStatusOK {
		t.Fatalf("state.Status = %q, want %q", state.Status, DependencyStatusOK)
	}
	if state.Source != DependencySourceConfig {
		t.Fatalf("state.Source = %q, want %q", state.Source, DependencySourceConfig)
	}
	if state.ResolvedPath != binPath {
		t.Fatalf("state.ResolvedPath = %q, want %q", state.ResolvedPath, binPath)
	}
}

func TestPathResolverResolveFallsBackToLookPath(t *testing.T) {
	resolver := NewPathResolver()
	resolver.LookPath = func(file string) (string, error) {
		return "/mock/bin/" + file, nil
	}

	state := resolver.Resolve(DependencySpec{ID: "ffprobe", Command: "ffprobe"})

	if state.Status != DependencyStatusOK || state.Source != DependencySourceLookPath {
		t.Fatalf("state = %+v", state)
	}
	if state.ResolvedPath != "/mock/bin/ffprobe" {
		t.Fatalf("state.ResolvedPath = %q", state.ResolvedPath)
	}
}

func TestPathResolverResolveConfiguredStatFailureReturnsError(t *testing.T) {
	resolver := NewPathResolver()
	resolver.LookPath = func(file string) (string, error) {
		return "", notFoundErr(file)
	}
	resolver.AbsPath = func(path string) (string, error) {
		return "/mock/configured/path", nil
	}
	resolver.Stat = func(name string) (os.FileInfo, error) {
		return nil, errors.New("permission denied")
	}

	state := resolver.Resolve(DependencySpec{ID: "ffmpeg", Command: "ffmpeg", ConfiguredPath: "ignored"})

	if state.Status != DependencyStatusError {
		t.Fatalf("state.Status = %q, want %q", state.Status, DependencyStatusError)
	}
	if !strings.Contains(state.Error, "permission denied") {
		t.Fatalf("state.Error = %q", state.Error)
	}
}

func TestResolveBinaries(t *testing.T) {
	t.Run("both found", func(t *testing.T) {
		resolver := NewPathResolver()
		resolver.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }

		bins, err := ResolveBinaries(config.Media{}, resolver)
		if err != nil {
			t.Fatalf("ResolveBinaries() error: %v", err)
		}
		if bins.Ffmpeg != "/usr/bin/ffmpeg" || bins.Ffprobe != "/usr/bin/ffprobe" {
			t.Fatalf("bins = %+v", bins)
		}
	})

	t.Run("ffprobe missing", func(t *testing.T) {
		resolver := NewPathResolver()
		resolver.LookPath = func(file string) (string, error) {
			if file == "ffprobe" {
				return "", notFoundErr(file)
			}
			return "/usr/bin/" + file, nil
		}

		_, err := ResolveBinaries(config.Media{}, resolver)
		if err == nil || !strings.Contains(err.Error(), "ffprobe") {
			t.Fatalf("ResolveBinaries() error = %v, want ffprobe problem", err)
		}
	})
}

func TestFormatDependencyReport(t *testing.T) {
	report := FormatDependencyReport([]DependencyState{{
		DependencySpec: DependencySpec{ID: "ffmpeg", Tier: DependencyTierMust, Hint: "install it"},
		Status:         DependencyStatusMissing,
		Error:          "not found",
	}})
	for _, want := range []string{"ffmpeg [MUST]: missing", "path=unknown", "error: not found", "hint: install it"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report %q missing %q", report, want)
		}
	}
	if FormatDependencyReport(nil) != "No dependencies to diagnose." {
		t.Fatal("empty report text changed")
	}
}
