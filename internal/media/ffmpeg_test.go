package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"magic-workflow/internal/deps"
	apperrors "magic-workflow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	name string
	args []string
}

type fakeRunner struct {
	calls  []recordedCall
	output []byte
	err    error
	// seen holds the concat list file contents while it still exists
	seen string
}

func (r *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, recordedCall{name: name, args: args})
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) && strings.HasSuffix(args[i+1], ".txt") {
			data, _ := os.ReadFile(args[i+1])
			r.seen = string(data)
		}
	}
	return r.output, r.err
}

func newTestFFmpeg(t *testing.T) (*FFmpeg, *fakeRunner, string) {
	t.Helper()
	dir := t.TempDir()
	runner := &fakeRunner{}
	f := NewFFmpeg(deps.Binaries{Ffmpeg: "/bin/ffmpeg", Ffprobe: "/bin/ffprobe"}, filepath.Join(dir, "out")).WithRunner(runner.run)
	return f, runner, dir
}

func writeWav(t *testing.T, path string) {
	t.Helper()
	header := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(path, header, 0o644))
}

func TestParseDuration(t *testing.T) {
	got, err := parseDuration([]byte("12.480000\n"))
	require.NoError(t, err)
	assert.InDelta(t, 12.48, got, 1e-9)

	_, err = parseDuration([]byte("N/A\n"))
	assert.Error(t, err)

	_, err = parseDuration([]byte("-1"))
	assert.Error(t, err)
}

func TestDurationRunsFfprobe(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)
	input := filepath.Join(dir, "a.wav")
	writeWav(t, input)
	runner.output = []byte("5.000000\n")

	got, err := f.Duration(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/bin/ffprobe", runner.calls[0].name)
	assert.Equal(t, []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", input}, runner.calls[0].args)
}

func TestDurationMissingFile(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)

	_, err := f.Duration(context.Background(), filepath.Join(dir, "nope.wav"))
	assert.True(t, apperrors.Is(err, apperrors.CodeMediaDurationFailed))
	assert.Empty(t, runner.calls)
}

func TestTrimBuildsArgs(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)
	input := filepath.Join(dir, "a.wav")
	writeWav(t, input)

	out, err := f.Trim(context.Background(), input, 1.5, 4)
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(out))
	assert.Equal(t, filepath.Join(dir, "out"), filepath.Dir(out))

	args := strings.Join(runner.calls[0].args, " ")
	assert.Contains(t, args, "-ss 1.500 -i "+input)
	assert.Contains(t, args, "-t 2.500")
	assert.Contains(t, args, "-c:a pcm_s16le")
	assert.True(t, strings.HasSuffix(args, out))

	_, err = f.Trim(context.Background(), input, 3, 3)
	assert.Error(t, err)
}

func TestSplitProducesTwoOutputs(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)
	input := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(input, []byte("not really mp4"), 0o644))

	head, tail, err := f.Split(context.Background(), input, 7)
	require.NoError(t, err)
	assert.NotEqual(t, head, tail)
	require.Len(t, runner.calls, 2)

	headArgs := strings.Join(runner.calls[0].args, " ")
	tailArgs := strings.Join(runner.calls[1].args, " ")
	assert.Contains(t, headArgs, "-ss 0.000")
	assert.Contains(t, headArgs, "-t 7.000")
	assert.Contains(t, headArgs, "-c:v libx264")
	assert.Contains(t, tailArgs, "-ss 7.000")
	assert.NotContains(t, tailArgs, "-t ")
}

func TestConcatWritesListFile(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)
	a := filepath.Join(dir, "it's.wav")
	b := filepath.Join(dir, "b.wav")
	writeWav(t, a)
	writeWav(t, b)

	out, err := f.Concat(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(out))

	assert.Contains(t, runner.seen, `it'\''s.wav'`)
	assert.Equal(t, 2, strings.Count(runner.seen, "file '"))
	assert.Contains(t, strings.Join(runner.calls[0].args, " "), "-f concat -safe 0")

	// list file is removed afterwards
	matches, _ := filepath.Glob(filepath.Join(dir, "out", "concat_*.txt"))
	assert.Empty(t, matches)

	_, err = f.Concat(context.Background(), nil)
	assert.Error(t, err)
}

func TestAudioCutFadeFilters(t *testing.T) {
	f, runner, dir := newTestFFmpeg(t)
	input := filepath.Join(dir, "bgm.mp3")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	_, err := f.AudioCutFade(context.Background(), input, 2, 10, 1, 2)
	require.NoError(t, err)

	args := strings.Join(runner.calls[0].args, " ")
	assert.Contains(t, args, "afade=t=in:st=0:d=1.000,afade=t=out:st=8.000:d=2.000")
	assert.Contains(t, args, "-c:a libmp3lame")
}

func TestAddAudioToVideoMapsStreams(t *testing.T) {
	f, runner, _ := newTestFFmpeg(t)

	out, err := f.AddAudioToVideo(context.Background(), "v.mp4", "a.wav")
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(out))
	assert.Equal(t, "/bin/ffmpeg", runner.calls[0].name)
	assert.Contains(t, strings.Join(runner.calls[0].args, " "), "-i v.mp4 -i a.wav -map 0:v:0 -map 1:a:0")
}

func TestFfmpegFailureIsCollaboratorError(t *testing.T) {
	f, runner, _ := newTestFFmpeg(t)
	runner.err = errors.New("exit status 1")
	runner.output = []byte("Invalid data found when processing input")

	_, err := f.AddAudioToVideo(context.Background(), "v.mp4", "a.wav")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeMediaProcessFailed))
	assert.Equal(t, apperrors.KindCollaboratorFailure, apperrors.GetKind(err))
}

func TestDetectKind(t *testing.T) {
	dir := t.TempDir()
	sniffed := filepath.Join(dir, "audio.bin")
	writeWav(t, sniffed)

	assert.Equal(t, kindAudio, detectKind(sniffed))
	assert.Equal(t, kindVideo, detectKind(filepath.Join(dir, "missing.mov")))
	assert.Equal(t, kindImage, detectKind("cover.webp"))
	assert.Equal(t, kindUnknown, detectKind("notes.txt"))
}
