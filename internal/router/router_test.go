package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/handler"
	"magic-workflow/internal/mocks"
	"magic-workflow/internal/response"
	"magic-workflow/internal/service"
	"magic-workflow/internal/storage"
	"magic-workflow/internal/taskrunner"
	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"
)

type testServer struct {
	engine *gin.Engine
	hub    *handler.Hub
	media  *mocks.FakeMedia
	paths  appdirs.Paths
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	paths := appdirs.Paths{
		ConfigDir: filepath.Join(root, "config"),
		OutputDir: filepath.Join(root, "output"),
		CacheDir:  filepath.Join(root, "cache"),
	}

	require.NoError(t, storage.OpenDB(filepath.Join(paths.CacheDir, "test.db")))
	t.Cleanup(func() { storage.DB = nil })

	runner := taskrunner.New(taskrunner.DefaultConfig())
	t.Cleanup(runner.Close)

	media := mocks.NewFakeMedia()
	svc := service.New(new(mocks.MockChatCompleter), storage.NewJSONStore(), runner,
		func(string) types.MediaProcessor { return media },
		service.Options{Paths: paths, WatchInterval: time.Hour})
	t.Cleanup(svc.Close)

	hub := handler.NewHub()
	svc.SetNotifier(hub)

	engine := gin.New()
	SetupRouter(engine, handler.NewHandler(svc, hub))
	return testServer{engine: engine, hub: hub, media: media, paths: paths}
}

func (s testServer) do(t *testing.T, method, path string, body any) response.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

// seed creates project pid holding scenes with 5s narration each.
func (s testServer) seed(t *testing.T, pid string, ids ...int) {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/projects", gin.H{"pid": pid, "language": "en"})
	require.Equal(t, int32(0), res.Error, res.Msg)

	scenes := make([]*types.Scene, len(ids))
	for i, id := range ids {
		audio := filepath.Join("media", strings.Repeat("a", i+1)+".wav")
		s.media.Add(audio, 5)
		scenes[i] = &types.Scene{ID: id, Content: "scene", ClipAudio: audio}
	}
	path := filepath.Join(appdirs.ProjectDirFor(s.paths, pid), "scenes.json")
	require.NoError(t, storage.NewJSONStore().WriteJSON(path, scenes))
}

func sceneIDsOf(t *testing.T, res response.Response) []int {
	t.Helper()
	data, err := json.Marshal(res.Data)
	require.NoError(t, err)
	var scenes []types.Scene
	require.NoError(t, json.Unmarshal(data, &scenes))
	ids := make([]int, len(scenes))
	for i, sc := range scenes {
		ids[i] = sc.ID
	}
	return ids
}

func TestCreateAndListProjects(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/api/projects", gin.H{"pid": "rome", "language": "en", "channel": "history"})
	require.Equal(t, int32(0), res.Error, res.Msg)

	res = s.do(t, http.MethodPost, "/api/projects", gin.H{"pid": "rome"})
	assert.Equal(t, int32(apperrors.CodeInvalidParams), res.Error)

	res = s.do(t, http.MethodPost, "/api/projects", gin.H{"language": "en"})
	assert.Equal(t, int32(apperrors.CodeInvalidParams), res.Error)

	res = s.do(t, http.MethodGet, "/api/projects/rome", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	project := res.Data.(map[string]any)
	assert.Equal(t, "rome", project["pid"])
	assert.Equal(t, "history", project["channel"])
	assert.EqualValues(t, 0, project["scene_count"])

	res = s.do(t, http.MethodGet, "/api/projects/ghost", nil)
	assert.Equal(t, int32(apperrors.CodeProjectNotFound), res.Error)

	res = s.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Len(t, res.Data, 1)
}

func TestSceneEdits(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "p1", 10001, 10002, 10003)

	res := s.do(t, http.MethodGet, "/api/projects/p1/scenes", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Equal(t, []int{10001, 10002, 10003}, sceneIDsOf(t, res))

	res = s.do(t, http.MethodPost, "/api/projects/p1/scenes/merge", gin.H{"from": 0, "to": 1, "keep_current": true})
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Len(t, sceneIDsOf(t, res), 2)

	res = s.do(t, http.MethodPost, "/api/projects/p1/scenes/clone", gin.H{"index": 0, "after": true})
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Len(t, sceneIDsOf(t, res), 3)

	res = s.do(t, http.MethodPut, "/api/projects/p1/scenes/0/content", gin.H{"content": "rewritten"})
	require.Equal(t, int32(0), res.Error, res.Msg)

	res = s.do(t, http.MethodGet, "/api/projects/p1/edits", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Len(t, res.Data, 3)
}

func TestSceneEditErrors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "p1", 10001, 10002, 10003)

	res := s.do(t, http.MethodPost, "/api/projects/p1/scenes/merge", gin.H{"from": 0, "to": 2})
	assert.Equal(t, int32(apperrors.CodeAdjacencyViolation), res.Error)
	assert.Equal(t, apperrors.KindAdjacencyViolation, res.Kind)

	res = s.do(t, http.MethodPost, "/api/projects/p1/scenes/split", gin.H{"index": 9, "position": 1.0})
	assert.Equal(t, apperrors.KindInvalidIndex, res.Kind)

	res = s.do(t, http.MethodPost, "/api/projects/p1/scenes/swap", gin.H{"a": 0})
	assert.Equal(t, int32(apperrors.CodeInvalidParams), res.Error)

	res = s.do(t, http.MethodGet, "/api/projects/p1/scenes/x/story", nil)
	assert.Equal(t, int32(apperrors.CodeInvalidIndex), res.Error)

	res = s.do(t, http.MethodPost, "/api/projects/p1/scenes/0/replace-with-others", gin.H{"scenes": []any{nil}})
	assert.Equal(t, int32(apperrors.CodeInvalidParams), res.Error)

	res = s.do(t, http.MethodGet, "/api/projects/p1/scenes", nil)
	assert.Equal(t, []int{10001, 10002, 10003}, sceneIDsOf(t, res))
}

func TestDeleteScene(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "p1", 10001, 10002, 20001)

	res := s.do(t, http.MethodDelete, "/api/projects/p1/scenes/0", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	body := res.Data.(map[string]any)
	assert.Equal(t, false, body["story_gone"])
	assert.Len(t, body["remaining"], 1)

	res = s.do(t, http.MethodDelete, "/api/projects/p1/scenes/1", nil)
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Equal(t, true, res.Data.(map[string]any)["story_gone"])

	res = s.do(t, http.MethodGet, "/api/projects/p1/scenes", nil)
	assert.Equal(t, []int{10002}, sceneIDsOf(t, res))
}

func TestEventsReachSubscribers(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?pid=p1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.hub.Broadcast(service.Event{Type: service.EventTitlesChanged, Pid: "other"})
	s.hub.Broadcast(service.Event{Type: service.EventSceneChanged, Pid: "p1", Op: types.EditOpSwap, SceneCount: 2})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev service.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, service.EventSceneChanged, ev.Type)
	assert.Equal(t, types.EditOpSwap, ev.Op)
	assert.Equal(t, 2, ev.SceneCount)
}

func TestUploadMedia(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "p1", 10001)

	upload := func(name string, content []byte) response.Response {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/media", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		var res response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		return res
	}

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	res := upload("cover.png", png)
	require.Equal(t, int32(0), res.Error, res.Msg)
	assert.Equal(t, []any{"media/cover.png"}, res.Data.(map[string]any)["file_path"])
	assert.FileExists(t, filepath.Join(appdirs.ProjectDirFor(s.paths, "p1"), "media", "cover.png"))

	res = upload("notes.txt", []byte("plain text"))
	assert.Equal(t, int32(apperrors.CodeInvalidParams), res.Error)
}
