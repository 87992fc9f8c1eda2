package types

import (
	"context"
	"time"
)

// MediaProcessor cuts and joins media files. Every method writes new files
// and returns their paths; inputs are never modified.
type MediaProcessor interface {
	Duration(ctx context.Context, path string) (float64, error)
	Trim(ctx context.Context, path string, start, end float64) (string, error)
	Concat(ctx context.Context, paths []string) (string, error)
	Split(ctx context.Context, path string, position float64) (string, string, error)
	AudioCutFade(ctx context.Context, path string, start, length, fadeIn, fadeOut float64) (string, error)
	AddAudioToVideo(ctx context.Context, videoPath, audioPath string) (string, error)
}

// ProjectStore reads and writes whole JSON documents.
type ProjectStore interface {
	ReadJSON(path string, v any) error
	WriteJSON(path string, v any) error
	ModTime(path string) (time.Time, error)
}

type ChatCompleter interface {
	ChatCompletion(systemPrompt, userPrompt string) (string, error)
}
