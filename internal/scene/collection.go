// Package scene holds the ordered scene list of one project and the
// structural edits on it.
//
// List position is the playback order. Scene ids only decide story-group
// membership (id / group factor) and are unique across the collection.
package scene

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"magic-workflow/internal/types"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
	"magic-workflow/pkg/util"
)

const (
	DefaultGroupFactor         = 10000
	defaultDurationConcurrency = 4
)

type Options struct {
	GroupFactor         int
	NormalizeRounds     int
	DurationConcurrency int
}

func (o Options) withDefaults() Options {
	if o.GroupFactor <= 0 {
		o.GroupFactor = DefaultGroupFactor
	}
	if o.NormalizeRounds <= 0 {
		o.NormalizeRounds = util.DefaultNormalizeRounds
	}
	if o.DurationConcurrency <= 0 {
		o.DurationConcurrency = defaultDurationConcurrency
	}
	return o
}

// MutationEvent describes a structural change that has been written to disk.
type MutationEvent struct {
	Op         types.EditOp
	Detail     string
	SceneCount int
}

// Collection is safe for concurrent readers. Edits are serialized on
// writeMu; mu only guards the swap of the list itself, so readers are not
// blocked while media is being processed.
type Collection struct {
	writeMu sync.Mutex

	mu        sync.RWMutex
	scenes    []*types.Scene
	lastWrite time.Time

	path  string
	store types.ProjectStore
	media types.MediaProcessor
	opts  Options

	hookMu     sync.RWMutex
	onMutation func(MutationEvent)
}

// New returns an empty collection persisted at path.
func New(path string, store types.ProjectStore, media types.MediaProcessor, opts Options) *Collection {
	return &Collection{
		path:  path,
		store: store,
		media: media,
		opts:  opts.withDefaults(),
	}
}

// Load reads the collection stored at path.
func Load(path string, store types.ProjectStore, media types.MediaProcessor, opts Options) (*Collection, error) {
	c := New(path, store, media, opts)
	scenes, err := c.read()
	if err != nil {
		return nil, err
	}
	c.scenes = scenes
	c.lastWrite = c.modTime()
	return c, nil
}

func (c *Collection) Path() string {
	return c.path
}

func (c *Collection) GroupFactor() int {
	return c.opts.GroupFactor
}

// OnMutation registers fn to run after every persisted edit.
func (c *Collection) OnMutation(fn func(MutationEvent)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onMutation = fn
}

func (c *Collection) emit(op types.EditOp, detail string, count int) {
	c.hookMu.RLock()
	fn := c.onMutation
	c.hookMu.RUnlock()

	log.GetLogger().Info("[Scenes] collection updated",
		zap.String("path", c.path),
		zap.String("op", string(op)),
		zap.String("detail", detail),
		zap.Int("scene_count", count))
	if fn != nil {
		fn(MutationEvent{Op: op, Detail: detail, SceneCount: count})
	}
}

func (c *Collection) read() ([]*types.Scene, error) {
	var scenes []*types.Scene
	if err := c.store.ReadJSON(c.path, &scenes); err != nil {
		return nil, err
	}
	scenes = lo.Filter(scenes, func(s *types.Scene, _ int) bool { return s != nil })
	for _, s := range scenes {
		s.NormalizeFields(c.opts.NormalizeRounds)
	}
	if dups := lo.FindDuplicates(lo.Map(scenes, func(s *types.Scene, _ int) int { return s.ID })); len(dups) > 0 {
		return nil, apperrors.Newf(apperrors.CodeProjectConfigInvalid, "Duplicate scene ids", "%s: %v", c.path, dups)
	}
	return scenes, nil
}

func (c *Collection) modTime() time.Time {
	t, err := c.store.ModTime(c.path)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Replace swaps in a whole new list (bootstrap) and persists it.
func (c *Collection) Replace(scenes []*types.Scene, op types.EditOp) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	scenes = lo.Filter(scenes, func(s *types.Scene, _ int) bool { return s != nil })
	ids := lo.Map(scenes, func(s *types.Scene, _ int) int { return s.ID })
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Duplicate scene ids", "%v", dups)
	}
	return c.commit(cloneAll(scenes), op, "")
}

// Save writes the current list to disk.
func (c *Collection) Save() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

// saveLocked normalizes descriptive fields and writes the list. Callers hold
// c.mu for writing.
func (c *Collection) saveLocked() error {
	for _, s := range c.scenes {
		s.NormalizeFields(c.opts.NormalizeRounds)
	}
	out := c.scenes
	if out == nil {
		out = []*types.Scene{}
	}
	if err := c.store.WriteJSON(c.path, out); err != nil {
		return err
	}
	c.lastWrite = c.modTime()
	return nil
}

// commit installs next as the scene list and persists it. A failed write
// keeps the previous list. Callers hold writeMu.
func (c *Collection) commit(next []*types.Scene, op types.EditOp, detail string) error {
	c.mu.Lock()
	prev := c.scenes
	c.scenes = next
	err := c.saveLocked()
	if err != nil {
		c.scenes = prev
	}
	count := len(c.scenes)
	c.mu.Unlock()

	if err != nil {
		log.GetLogger().Error("[Scenes] save failed", zap.String("path", c.path), zap.Error(err))
		return err
	}
	c.emit(op, detail, count)
	return nil
}

// Reload replaces the in-memory list with the file content.
func (c *Collection) Reload() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	scenes, err := c.read()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.scenes = scenes
	c.lastWrite = c.modTime()
	count := len(scenes)
	c.mu.Unlock()

	c.emit(types.EditOpReload, "", count)
	return nil
}

// ChangedOnDisk reports whether the file was modified since this collection
// last read or wrote it.
func (c *Collection) ChangedOnDisk() (bool, error) {
	t, err := c.store.ModTime(c.path)
	if err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !t.Equal(c.lastWrite), nil
}

// Scenes returns a copy of the list.
func (c *Collection) Scenes() []*types.Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.scenes)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenes)
}

// At returns a copy of the scene at index.
func (c *Collection) At(index int) (*types.Scene, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	return c.scenes[index].Clone(), nil
}

// IndexOf returns the list position of the scene with id, or -1.
func (c *Collection) IndexOf(id int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOfID(id)
}

func (c *Collection) indexOfID(id int) int {
	_, idx, ok := lo.FindIndexOf(c.scenes, func(s *types.Scene) bool { return s.ID == id })
	if !ok {
		return -1
	}
	return idx
}

func (c *Collection) checkIndex(index int) error {
	if index < 0 || index >= len(c.scenes) {
		return apperrors.Newf(apperrors.CodeInvalidIndex, "Scene index out of range", "index %d, scenes %d", index, len(c.scenes))
	}
	return nil
}

func (c *Collection) groupOf(id int) int {
	return types.GroupOf(id, c.opts.GroupFactor)
}

func (c *Collection) members(group int) []*types.Scene {
	return lo.Filter(c.scenes, func(s *types.Scene, _ int) bool { return c.groupOf(s.ID) == group })
}

func (c *Collection) durationOf(ctx context.Context, s *types.Scene) (float64, error) {
	d, err := c.media.Duration(ctx, s.DurationSource())
	if err != nil {
		return 0, collaboratorErr("duration", err)
	}
	return d, nil
}

func collaboratorErr(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.WrapWithDetail(apperrors.CodeCollaboratorFailure, "Media processing failed", op, err)
}

func cloneAll(scenes []*types.Scene) []*types.Scene {
	return lo.Map(scenes, func(s *types.Scene, _ int) *types.Scene { return s.Clone() })
}
