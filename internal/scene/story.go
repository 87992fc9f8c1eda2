package scene

import (
	"context"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"magic-workflow/internal/types"
)

// SceneDetail places a scene on its story timeline.
type SceneDetail struct {
	StartInStory  float64 `json:"start_in_story"`
	ClipDuration  float64 `json:"clip_duration"`
	StoryDuration float64 `json:"story_duration"`
	Index         int     `json:"index"`
	GroupSize     int     `json:"group_size"`
	IsLast        bool    `json:"is_last"`
}

// ScenesInStory returns copies of the scenes sharing scene's story group, in
// list order.
func (c *Collection) ScenesInStory(scene *types.Scene) []*types.Scene {
	if scene == nil {
		return []*types.Scene{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.members(c.groupOf(scene.ID)))
}

// FirstSceneOfStory is true when scene leads its group, or the group is empty.
func (c *Collection) FirstSceneOfStory(scene *types.Scene) bool {
	group := c.ScenesInStory(scene)
	if len(group) == 0 {
		return true
	}
	return scene != nil && group[0].ID == scene.ID
}

// LastSceneOfStory is true when scene closes its group, or the group is empty.
func (c *Collection) LastSceneOfStory(scene *types.Scene) bool {
	group := c.ScenesInStory(scene)
	if len(group) == 0 {
		return true
	}
	return scene != nil && group[len(group)-1].ID == scene.ID
}

// NextSceneOfStory returns the scene following scene inside its group, or
// nil when scene is last, absent, or the group has fewer than two members.
func (c *Collection) NextSceneOfStory(scene *types.Scene) *types.Scene {
	group := c.ScenesInStory(scene)
	if len(group) < 2 {
		return nil
	}
	_, idx, ok := lo.FindIndexOf(group, func(s *types.Scene) bool { return s.ID == scene.ID })
	if !ok || idx == len(group)-1 {
		return nil
	}
	return group[idx+1]
}

// GetSceneDetail measures the duration of every member of scene's group. A
// scene that is not in the collection reports index -1 and is measured on
// its own.
func (c *Collection) GetSceneDetail(ctx context.Context, scene *types.Scene) (SceneDetail, error) {
	if scene == nil {
		return SceneDetail{Index: -1}, nil
	}

	c.mu.RLock()
	index := c.indexOfID(scene.ID)
	group := cloneAll(c.members(c.groupOf(scene.ID)))
	c.mu.RUnlock()

	durations, err := c.durationsOf(ctx, group)
	if err != nil {
		return SceneDetail{}, err
	}

	detail := SceneDetail{
		Index:         index,
		GroupSize:     len(group),
		StoryDuration: lo.Sum(durations),
		IsLast:        len(group) == 0,
	}

	_, pos, found := lo.FindIndexOf(group, func(s *types.Scene) bool { return s.ID == scene.ID })
	if !found {
		d, err := c.durationOf(ctx, scene)
		if err != nil {
			return SceneDetail{}, err
		}
		detail.ClipDuration = d
		return detail, nil
	}

	detail.StartInStory = lo.Sum(durations[:pos])
	detail.ClipDuration = durations[pos]
	detail.IsLast = pos == len(group)-1
	return detail, nil
}

func (c *Collection) durationsOf(ctx context.Context, scenes []*types.Scene) ([]float64, error) {
	durations := make([]float64, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.DurationConcurrency)
	for i, s := range scenes {
		i, s := i, s
		g.Go(func() error {
			d, err := c.durationOf(gctx, s)
			if err != nil {
				return err
			}
			durations[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return durations, nil
}
