// Package media runs ffmpeg and ffprobe on behalf of the scene editor.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"magic-workflow/internal/deps"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg implements types.MediaProcessor. Results are written to outputDir
// under random names that keep the input extension.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	outputDir   string
	run         CommandRunner
}

func NewFFmpeg(bins deps.Binaries, outputDir string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  orDefault(bins.Ffmpeg, "ffmpeg"),
		ffprobePath: orDefault(bins.Ffprobe, "ffprobe"),
		outputDir:   orDefault(outputDir, os.TempDir()),
		run:         execRunner,
	}
}

// WithRunner replaces command execution, used by tests.
func (f *FFmpeg) WithRunner(run CommandRunner) *FFmpeg {
	f.run = run
	return f
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	if path == "" {
		return 0, apperrors.WrapWithDetail(apperrors.CodeMediaDurationFailed, "Media duration lookup failed", "empty path", os.ErrNotExist)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, apperrors.WrapWithDetail(apperrors.CodeMediaDurationFailed, "Media duration lookup failed", path, err)
	}

	out, err := f.run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, apperrors.WrapWithDetail(apperrors.CodeMediaDurationFailed, "Media duration lookup failed", strings.TrimSpace(string(out)), err)
	}
	duration, err := parseDuration(out)
	if err != nil {
		return 0, apperrors.WrapWithDetail(apperrors.CodeMediaDurationFailed, "Media duration lookup failed", path, err)
	}
	return duration, nil
}

func parseDuration(out []byte) (float64, error) {
	text := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	duration, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q", text)
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative duration %v", duration)
	}
	return duration, nil
}

func (f *FFmpeg) Trim(ctx context.Context, path string, start, end float64) (string, error) {
	if start < 0 || end <= start {
		return "", apperrors.Newf(apperrors.CodeMediaProcessFailed, "Media processing failed", "invalid trim range %.3f-%.3f", start, end)
	}
	return f.cut(ctx, path, start, end-start)
}

// cut extracts length seconds from start; a non-positive length runs to the
// end of the input.
func (f *FFmpeg) cut(ctx context.Context, path string, start, length float64) (string, error) {
	output := f.newOutput(path, "cut")
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-ss", formatSeconds(start), "-i", path}
	if length > 0 {
		args = append(args, "-t", formatSeconds(length))
	}
	args = append(args, codecArgs(path)...)
	args = append(args, output)
	return output, f.ffmpeg(ctx, "trim", args)
}

func (f *FFmpeg) Split(ctx context.Context, path string, position float64) (string, string, error) {
	if position <= 0 {
		return "", "", apperrors.Newf(apperrors.CodeMediaProcessFailed, "Media processing failed", "invalid split position %.3f", position)
	}
	head, err := f.cut(ctx, path, 0, position)
	if err != nil {
		return "", "", err
	}
	tail, err := f.cut(ctx, path, position, 0)
	if err != nil {
		return "", "", err
	}
	return head, tail, nil
}

func (f *FFmpeg) Concat(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", apperrors.New(apperrors.CodeMediaProcessFailed, "Nothing to concatenate")
	}

	listPath := filepath.Join(f.outputDir, "concat_"+uuid.NewString()+".txt")
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "File write failed", err)
	}
	if err := os.WriteFile(listPath, []byte(concatList(paths)), 0o644); err != nil {
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "File write failed", err)
	}
	defer os.Remove(listPath)

	output := f.newOutput(paths[0], "concat")
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath}
	args = append(args, codecArgs(paths[0])...)
	args = append(args, output)
	return output, f.ffmpeg(ctx, "concat", args)
}

func concatList(paths []string) string {
	var builder strings.Builder
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		builder.WriteString("file '")
		builder.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		builder.WriteString("'\n")
	}
	return builder.String()
}

func (f *FFmpeg) AudioCutFade(ctx context.Context, path string, start, length, fadeIn, fadeOut float64) (string, error) {
	if start < 0 || length <= 0 {
		return "", apperrors.Newf(apperrors.CodeMediaProcessFailed, "Media processing failed", "invalid cut %.3f+%.3f", start, length)
	}

	var filters []string
	if fadeIn > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%s", formatSeconds(fadeIn)))
	}
	if fadeOut > 0 {
		fadeStart := length - fadeOut
		if fadeStart < 0 {
			fadeStart = 0
		}
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s", formatSeconds(fadeStart), formatSeconds(fadeOut)))
	}

	output := f.newOutput(path, "fade")
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-ss", formatSeconds(start), "-t", formatSeconds(length), "-i", path}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	args = append(args, audioCodecArgs(path)...)
	args = append(args, output)
	return output, f.ffmpeg(ctx, "audio_cut_fade", args)
}

func (f *FFmpeg) AddAudioToVideo(ctx context.Context, videoPath, audioPath string) (string, error) {
	output := f.newOutput(videoPath, "mux")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath, "-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac",
		output,
	}
	return output, f.ffmpeg(ctx, "add_audio", args)
}

func (f *FFmpeg) ffmpeg(ctx context.Context, op string, args []string) error {
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeFileWriteError, "File write failed", err)
	}
	log.GetLogger().Debug("[Media] ffmpeg", zap.String("op", op), zap.Strings("args", args))

	out, err := f.run(ctx, f.ffmpegPath, args...)
	if err != nil {
		log.GetLogger().Error("[Media] ffmpeg failed",
			zap.String("op", op),
			zap.String("output", strings.TrimSpace(string(out))),
			zap.Error(err))
		return apperrors.WrapWithDetail(apperrors.CodeMediaProcessFailed, "Media processing failed", op+": "+strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (f *FFmpeg) newOutput(input, prefix string) string {
	ext := filepath.Ext(input)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(f.outputDir, prefix+"_"+uuid.NewString()+ext)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
