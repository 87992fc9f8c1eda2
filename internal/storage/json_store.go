package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	apperrors "magic-workflow/pkg/errors"
)

// JSONStore reads and writes whole JSON documents on the local filesystem.
type JSONStore struct{}

func NewJSONStore() JSONStore {
	return JSONStore{}
}

func (JSONStore) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.WrapWithDetail(apperrors.CodeFileNotFound, "File not found", path, err)
		}
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return apperrors.WrapWithDetail(apperrors.CodeProjectConfigInvalid, "Invalid JSON document", path, err)
	}
	return nil
}

// WriteJSON writes v with 4-space indentation and unescaped HTML characters.
// The document is written to a sibling temp file and renamed over path, so
// readers never observe a half-written file.
func (JSONStore) WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(v); err != nil {
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "Encode JSON failed", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", path, err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", path, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", path, err)
	}
	return nil
}

func (JSONStore) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
