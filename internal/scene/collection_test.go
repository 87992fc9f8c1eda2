package scene

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"magic-workflow/internal/mocks"
	"magic-workflow/internal/storage"
	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	c     *Collection
	media *mocks.FakeMedia
	path  string
}

func newFixture(t *testing.T, scenes ...*types.Scene) fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenes.json")
	media := mocks.NewFakeMedia()
	for _, s := range scenes {
		if s.ClipAudio != "" && media.Length(s.ClipAudio) == 0 {
			media.Add(s.ClipAudio, 5)
		}
	}
	c := New(path, storage.NewJSONStore(), media, Options{})
	require.NoError(t, c.Replace(scenes, types.EditOpBootstrap))
	return fixture{c: c, media: media, path: path}
}

func withAudio(id int, audio string) *types.Scene {
	return &types.Scene{ID: id, Content: audio + " text", ClipAudio: audio}
}

func ids(scenes []*types.Scene) []int {
	out := make([]int, len(scenes))
	for i, s := range scenes {
		out[i] = s.ID
	}
	return out
}

func readFile(t *testing.T, path string) []*types.Scene {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var scenes []*types.Scene
	require.NoError(t, json.Unmarshal(data, &scenes))
	return scenes
}

func TestScenesInStory(t *testing.T) {
	f := newFixture(t,
		withAudio(10001, "a"), withAudio(10002, "b"),
		withAudio(20001, "c"),
		withAudio(10003, "d"),
	)

	group := f.c.ScenesInStory(&types.Scene{ID: 10002})
	assert.Equal(t, []int{10001, 10002, 10003}, ids(group))
	for _, s := range group {
		assert.Equal(t, 1, types.GroupOf(s.ID, f.c.GroupFactor()))
	}

	assert.Empty(t, f.c.ScenesInStory(nil))
	assert.Empty(t, f.c.ScenesInStory(&types.Scene{ID: 90001}))

	empty := New(filepath.Join(t.TempDir(), "scenes.json"), storage.NewJSONStore(), mocks.NewFakeMedia(), Options{})
	assert.Empty(t, empty.ScenesInStory(&types.Scene{ID: 1}))
}

func TestScenesInStorySmallFactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.json")
	c := New(path, storage.NewJSONStore(), mocks.NewFakeMedia(), Options{GroupFactor: 100})
	require.NoError(t, c.Replace([]*types.Scene{{ID: 101}, {ID: 102}, {ID: 201}}, types.EditOpBootstrap))

	assert.Equal(t, []int{101, 102}, ids(c.ScenesInStory(&types.Scene{ID: 101})))
}

func TestStoryNavigation(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"), withAudio(10002, "b"), withAudio(10003, "c"), withAudio(20001, "d"))

	first, middle, last := &types.Scene{ID: 10001}, &types.Scene{ID: 10002}, &types.Scene{ID: 10003}
	assert.True(t, f.c.FirstSceneOfStory(first))
	assert.False(t, f.c.FirstSceneOfStory(middle))
	assert.True(t, f.c.LastSceneOfStory(last))
	assert.False(t, f.c.LastSceneOfStory(middle))

	require.NotNil(t, f.c.NextSceneOfStory(middle))
	assert.Equal(t, 10003, f.c.NextSceneOfStory(middle).ID)
	assert.Nil(t, f.c.NextSceneOfStory(last))

	solo := &types.Scene{ID: 20001}
	assert.Nil(t, f.c.NextSceneOfStory(solo))
	assert.True(t, f.c.FirstSceneOfStory(solo))
	assert.True(t, f.c.LastSceneOfStory(solo))

	// empty group is vacuously first and last
	assert.True(t, f.c.FirstSceneOfStory(&types.Scene{ID: 50001}))
	assert.True(t, f.c.LastSceneOfStory(&types.Scene{ID: 50001}))
}

func TestGetSceneDetailMiddleOfThree(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"), withAudio(10002, "b"), withAudio(10003, "c"))

	detail, err := f.c.GetSceneDetail(context.Background(), &types.Scene{ID: 10002})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, detail.StartInStory, 1e-9)
	assert.InDelta(t, 5.0, detail.ClipDuration, 1e-9)
	assert.InDelta(t, 15.0, detail.StoryDuration, 1e-9)
	assert.Equal(t, 1, detail.Index)
	assert.Equal(t, 3, detail.GroupSize)
	assert.False(t, detail.IsLast)
}

func TestGetSceneDetailAbsentScene(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"))
	f.media.Add("x", 2)

	detail, err := f.c.GetSceneDetail(context.Background(), &types.Scene{ID: 10009, ClipAudio: "x"})
	require.NoError(t, err)
	assert.Equal(t, -1, detail.Index)
	assert.Equal(t, 1, detail.GroupSize)
	assert.InDelta(t, 2.0, detail.ClipDuration, 1e-9)
	assert.InDelta(t, 5.0, detail.StoryDuration, 1e-9)
	assert.False(t, detail.IsLast)
}

func TestGetSceneDetailDurationFailure(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"), withAudio(10002, "b"))
	f.media.Fail("duration", errors.New("ffprobe: exit status 1"))

	_, err := f.c.GetSceneDetail(context.Background(), &types.Scene{ID: 10001})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCollaboratorFailure, apperrors.GetKind(err))
}

func TestLoadNormalizesAndRoundTrips(t *testing.T) {
	inner, _ := json.Marshal(map[string]any{"shot": "crane", "lens": "24mm"})
	once, _ := json.Marshal(string(inner))
	thrice := string(once)
	for i := 0; i < 2; i++ {
		b, _ := json.Marshal(thrice)
		thrice = string(b)
	}

	path := filepath.Join(t.TempDir(), "scenes.json")
	raw := `[{"id": 10001, "content": "dawn", "cinematography": ` + thrice + `, "mood": "quiet", "custom_note": "keep me"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	store := storage.NewJSONStore()
	c, err := Load(path, store, mocks.NewFakeMedia(), Options{})
	require.NoError(t, err)

	before := c.Scenes()
	require.Len(t, before, 1)
	assert.Equal(t, map[string]any{"shot": "crane", "lens": "24mm"}, before[0].Cinematography)

	require.NoError(t, c.Save())
	reloaded, err := Load(path, store, mocks.NewFakeMedia(), Options{})
	require.NoError(t, err)
	assert.Equal(t, before, reloaded.Scenes())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `\"shot\"`)
	assert.Contains(t, string(data), "custom_note")
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1}, {"id": 1}]`), 0o644))

	_, err := Load(path, storage.NewJSONStore(), mocks.NewFakeMedia(), Options{})
	assert.True(t, apperrors.Is(err, apperrors.CodeProjectConfigInvalid))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "scenes.json"), storage.NewJSONStore(), mocks.NewFakeMedia(), Options{})
	assert.True(t, apperrors.Is(err, apperrors.CodeFileNotFound))
}

func TestSaveFailureIsReported(t *testing.T) {
	store := new(mocks.MockProjectStore)
	store.On("WriteJSON", "scenes.json", mock.Anything).Return(errors.New("disk full"))

	c := New("scenes.json", store, mocks.NewFakeMedia(), Options{})
	err := c.Replace([]*types.Scene{{ID: 1}}, types.EditOpBootstrap)
	assert.EqualError(t, err, "disk full")
	store.AssertExpectations(t)
}

func TestReloadAndWatcher(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"))

	var events []MutationEvent
	f.c.OnMutation(func(e MutationEvent) { events = append(events, e) })

	w := NewWatcher(f.c, time.Second, nil)
	assert.False(t, w.Poll(context.Background()), "own write is not a change")

	require.NoError(t, os.WriteFile(f.path, []byte(`[{"id": 10001}, {"id": 10002, "content": "added elsewhere"}]`), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(f.path, future, future))

	assert.True(t, w.Poll(context.Background()))
	assert.Equal(t, 2, f.c.Len())
	require.Len(t, events, 1)
	assert.Equal(t, types.EditOpReload, events[0].Op)

	assert.False(t, w.Poll(context.Background()))
}

func TestWatcherRunStopsWithContext(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"))
	w := NewWatcher(f.c, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestAccessors(t *testing.T) {
	f := newFixture(t, withAudio(10001, "a"), withAudio(10002, "b"))

	s, err := f.c.At(1)
	require.NoError(t, err)
	assert.Equal(t, 10002, s.ID)

	// copies do not alias the collection
	s.Content = "changed"
	again, _ := f.c.At(1)
	assert.Equal(t, "b text", again.Content)

	_, err = f.c.At(2)
	assert.Equal(t, apperrors.KindInvalidIndex, apperrors.GetKind(err))
	assert.Equal(t, 0, f.c.IndexOf(10001))
	assert.Equal(t, -1, f.c.IndexOf(99))
}
