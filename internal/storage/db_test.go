package storage

import (
	"path/filepath"
	"testing"
	"time"

	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDBPathUsesCacheDir(t *testing.T) {
	originalResolver := appDirsResolver
	t.Cleanup(func() {
		appDirsResolver = originalResolver
	})

	tempDir := t.TempDir()
	cacheDir := filepath.Join(tempDir, "cache-root")
	appDirsResolver = func() (appdirs.Paths, error) {
		return appdirs.Paths{
			OutputDir: filepath.Join(tempDir, "output-root"),
			CacheDir:  cacheDir,
		}, nil
	}

	got, err := resolveDBPath()
	if err != nil {
		t.Fatalf("resolveDBPath() returned error: %v", err)
	}

	want := filepath.Join(cacheDir, "magicflow.db")
	if got != want {
		t.Fatalf("resolveDBPath() = %q, want %q", got, want)
	}
}

func openTestDB(t *testing.T) {
	t.Helper()
	original := DB
	require.NoError(t, OpenDB(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
		DB = original
	})
}

func TestSaveProjectUpserts(t *testing.T) {
	openTestDB(t)

	first := &types.ProjectRecord{Pid: "p1", Title: "Harbor", OpenedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, SaveProject(first))

	second := &types.ProjectRecord{Pid: "p1", Title: "Harbor at night", OpenedAt: time.Now()}
	require.NoError(t, SaveProject(second))
	assert.Equal(t, first.Id, second.Id)

	got, err := GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor at night", got.Title)

	require.NoError(t, SaveProject(&types.ProjectRecord{Pid: "p2", OpenedAt: time.Now().Add(time.Minute)}))
	recent, err := RecentProjects(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "p2", recent[0].Pid)
}

func TestEditsNewestFirst(t *testing.T) {
	openTestDB(t)

	require.NoError(t, AppendEdit(&types.EditRecord{Pid: "p1", Op: types.EditOpMerge, SceneCount: 3}))
	require.NoError(t, AppendEdit(&types.EditRecord{Pid: "p1", Op: types.EditOpSplit, SceneCount: 4}))
	require.NoError(t, AppendEdit(&types.EditRecord{Pid: "other", Op: types.EditOpSwap}))

	edits, err := ListEdits("p1", 10)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, types.EditOpSplit, edits[0].Op)

	require.NoError(t, DeleteProject("p1"))
	edits, err = ListEdits("p1", 10)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestStorageWithoutDB(t *testing.T) {
	original := DB
	DB = nil
	t.Cleanup(func() { DB = original })

	assert.Error(t, SaveProject(&types.ProjectRecord{Pid: "x"}))
	_, err := RecentProjects(1)
	assert.Error(t, err)
	assert.Error(t, AppendEdit(&types.EditRecord{}))
}
