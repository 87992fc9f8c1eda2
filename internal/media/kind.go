package media

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

type mediaKind uint8

const (
	kindUnknown mediaKind = iota
	kindAudio
	kindVideo
	kindImage
)

// detectKind sniffs the file header and falls back to the extension when the
// file is missing or unrecognized.
func detectKind(path string) mediaKind {
	if kind, err := filetype.MatchFile(path); err == nil && kind != filetype.Unknown {
		switch kind.MIME.Type {
		case "audio":
			return kindAudio
		case "video":
			return kindVideo
		case "image":
			return kindImage
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".m4a", ".aac", ".flac", ".ogg":
		return kindAudio
	case ".mp4", ".mov", ".mkv", ".webm", ".avi":
		return kindVideo
	case ".png", ".jpg", ".jpeg", ".webp":
		return kindImage
	}
	return kindUnknown
}

func codecArgs(path string) []string {
	switch detectKind(path) {
	case kindAudio:
		return audioCodecArgs(path)
	case kindVideo:
		return []string{"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p", "-c:a", "aac"}
	default:
		return nil
	}
}

func audioCodecArgs(path string) []string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return []string{"-c:a", "pcm_s16le"}
	case ".mp3":
		return []string{"-c:a", "libmp3lame"}
	case ".flac":
		return []string{"-c:a", "flac"}
	default:
		return []string{"-c:a", "aac"}
	}
}
