package service

import (
	"context"
	"fmt"

	"magic-workflow/internal/appcore"
	"magic-workflow/internal/scene"
	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"
)

// SceneView is one scene with its position inside its story.
type SceneView struct {
	Scene  *types.Scene      `json:"scene"`
	Detail scene.SceneDetail `json:"detail"`
	First  bool              `json:"first_of_story"`
	Last   bool              `json:"last_of_story"`
	NextID *int              `json:"next_id,omitempty"`
	Links  map[string]string `json:"links,omitempty"`
}

func (s *Service) Scenes(pid string) ([]*types.Scene, error) {
	p, err := s.OpenProject(pid)
	if err != nil {
		return nil, err
	}
	return p.Scenes.Scenes(), nil
}

// Story returns the scenes sharing a story with the scene at index.
func (s *Service) Story(pid string, index int) ([]*types.Scene, error) {
	p, err := s.OpenProject(pid)
	if err != nil {
		return nil, err
	}
	sc, err := p.Scenes.At(index)
	if err != nil {
		return nil, err
	}
	return p.Scenes.ScenesInStory(sc), nil
}

// Detail measures the story of the scene at index. Measuring runs in the
// background lane so it does not hold up edits.
func (s *Service) Detail(ctx context.Context, pid string, index int) (SceneView, error) {
	p, err := s.OpenProject(pid)
	if err != nil {
		return SceneView{}, err
	}
	sc, err := p.Scenes.At(index)
	if err != nil {
		return SceneView{}, err
	}

	out, err := s.run(ctx, appcore.JobKindBackground, pid, "detail", map[string]any{"index": index}, func(ctx context.Context) (any, error) {
		return p.Scenes.GetSceneDetail(ctx, sc)
	})
	if err != nil {
		return SceneView{}, err
	}

	view := SceneView{
		Scene:  sc,
		Detail: out.(scene.SceneDetail),
		First:  p.Scenes.FirstSceneOfStory(sc),
		Last:   p.Scenes.LastSceneOfStory(sc),
		Links:  sceneLinks(p.Ctx.ProjectPath, sc),
	}
	if next := p.Scenes.NextSceneOfStory(sc); next != nil {
		view.NextID = &next.ID
	}
	return view, nil
}

func (s *Service) Merge(ctx context.Context, pid string, from, to int, keepCurrent bool) error {
	return s.edit(ctx, pid, "merge", map[string]any{"from": from, "to": to, "keep_current": keepCurrent},
		func(ctx context.Context, c *scene.Collection) error {
			return c.MergeScene(ctx, from, to, keepCurrent)
		})
}

func (s *Service) Split(ctx context.Context, pid string, index int, position float64) error {
	return s.edit(ctx, pid, "split", map[string]any{"index": index, "position": position},
		func(ctx context.Context, c *scene.Collection) error {
			return c.SplitSceneAtPosition(ctx, index, position)
		})
}

// SmartSplit cuts the scene at index into sections of section seconds; a
// non-positive section uses the configured default.
func (s *Service) SmartSplit(ctx context.Context, pid string, index int, section float64) error {
	if section <= 0 {
		section = s.opts.SmartSection
	}
	return s.edit(ctx, pid, "smart_split", map[string]any{"index": index, "section": section},
		func(ctx context.Context, c *scene.Collection) error {
			sc, err := c.At(index)
			if err != nil {
				return err
			}
			return c.SplitSmartScene(ctx, sc, section)
		})
}

func (s *Service) Shift(ctx context.Context, pid string, a, b int, position float64) error {
	return s.edit(ctx, pid, "shift", map[string]any{"a": a, "b": b, "position": position},
		func(ctx context.Context, c *scene.Collection) error {
			return c.ShiftScene(ctx, a, b, position)
		})
}

func (s *Service) Swap(ctx context.Context, pid string, a, b int) error {
	return s.edit(ctx, pid, "swap", map[string]any{"a": a, "b": b},
		func(_ context.Context, c *scene.Collection) error {
			return c.SwapScene(a, b)
		})
}

func (s *Service) Clone(ctx context.Context, pid string, index int, after bool) error {
	return s.edit(ctx, pid, "clone", map[string]any{"index": index, "after": after},
		func(_ context.Context, c *scene.Collection) error {
			return c.CloneScene(index, after)
		})
}

// ReplaceWithOthers puts scenes in place of the scene at index.
func (s *Service) ReplaceWithOthers(ctx context.Context, pid string, index int, scenes []*types.Scene) error {
	return s.edit(ctx, pid, "splice", map[string]any{"index": index, "count": len(scenes)},
		func(_ context.Context, c *scene.Collection) error {
			return c.ReplaceSceneWithOthers(index, scenes)
		})
}

// Replace swaps in sc for the scene at index, or removes it when sc is nil.
// It returns the remaining members of the old scene's story, or nil when
// the story is gone.
func (s *Service) Replace(ctx context.Context, pid string, index int, sc *types.Scene) ([]*types.Scene, error) {
	p, err := s.OpenProject(pid)
	if err != nil {
		return nil, err
	}
	out, err := s.mutate(ctx, p, "replace", map[string]any{"index": index, "remove": sc == nil}, func(context.Context) (any, error) {
		return p.Scenes.ReplaceScene(index, sc)
	})
	if err != nil {
		return nil, err
	}
	remaining, _ := out.([]*types.Scene)
	return remaining, nil
}

func (s *Service) UpdateContent(ctx context.Context, pid string, index int, content string) error {
	return s.edit(ctx, pid, "update", map[string]any{"index": index},
		func(_ context.Context, c *scene.Collection) error {
			return c.UpdateScene(index, func(sc *types.Scene) { sc.Content = content })
		})
}

func (s *Service) PropagateRootMedia(ctx context.Context, pid string, index int) error {
	return s.edit(ctx, pid, "propagate", map[string]any{"index": index},
		func(_ context.Context, c *scene.Collection) error {
			return c.PropagateRootMedia(index)
		})
}

// FadeRootAudio cuts length seconds from start out of the root-track audio
// of the scene at index, fades both ends, and stores the result as the new
// root-track audio.
func (s *Service) FadeRootAudio(ctx context.Context, pid string, index int, start, length, fadeIn, fadeOut float64) error {
	p, err := s.OpenProject(pid)
	if err != nil {
		return err
	}
	if length <= 0 || start < 0 || fadeIn < 0 || fadeOut < 0 || fadeIn+fadeOut > length {
		return apperrors.Newf(apperrors.CodeInvalidPosition, "Invalid fade window", "start %.3f length %.3f fade %.3f/%.3f", start, length, fadeIn, fadeOut)
	}
	args := map[string]any{"index": index, "start": start, "length": length}
	_, err = s.mutate(ctx, p, "fade", args, func(ctx context.Context) (any, error) {
		sc, err := p.Scenes.At(index)
		if err != nil {
			return nil, err
		}
		if sc.ZeroAudio == "" {
			return nil, apperrors.Newf(apperrors.CodeInvalidParams, "Scene has no root audio", "id %d", sc.ID)
		}
		out, err := p.Media.AudioCutFade(ctx, sc.ZeroAudio, start, length, fadeIn, fadeOut)
		if err != nil {
			return nil, apperrors.WrapWithDetail(apperrors.CodeMediaProcessFailed, "Media processing failed", fmt.Sprintf("fade %s", sc.ZeroAudio), err)
		}
		return nil, p.Scenes.UpdateScene(index, func(sc *types.Scene) { sc.ZeroAudio = out })
	})
	return err
}

func (s *Service) edit(ctx context.Context, pid, name string, args map[string]any, fn func(context.Context, *scene.Collection) error) error {
	p, err := s.OpenProject(pid)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, p, name, args, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, p.Scenes)
	})
	return err
}
