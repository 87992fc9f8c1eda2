package scene

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"
)

// MergeScene joins the scene at to into the scene at from. The two must be
// neighbours in the list and from's story must keep at least one scene.
// Media is concatenated in playback order; from's content is replaced by
// to's unless keepCurrent is set. The scene at to is removed.
func (c *Collection) MergeScene(ctx context.Context, from, to int, keepCurrent bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(from); err != nil {
		return err
	}
	if err := c.checkIndex(to); err != nil {
		return err
	}
	if err := checkAdjacent(from, to); err != nil {
		return err
	}

	fromScene, toScene := c.scenes[from], c.scenes[to]
	fromGroup, toGroup := c.groupOf(fromScene.ID), c.groupOf(toScene.ID)
	if len(c.members(fromGroup)) < 2 || len(c.members(toGroup)) < 2 {
		return apperrors.Newf(apperrors.CodeWouldEmptyGroup, "Operation would empty the story group", "merge %d into %d", to, from)
	}

	first, second := fromScene, toScene
	if to < from {
		first, second = toScene, fromScene
	}

	audio, err := c.concatSlots(ctx, first.ClipAudio, second.ClipAudio)
	if err != nil {
		return err
	}
	video, err := c.concatSlots(ctx, first.Clip, second.Clip)
	if err != nil {
		return err
	}

	merged := fromScene.Clone()
	merged.ClipAudio = audio
	merged.Clip = video
	merged.Duration = 0
	if !keepCurrent {
		merged.Content = toScene.Content
	}

	next := make([]*types.Scene, 0, len(c.scenes)-1)
	for i, s := range c.scenes {
		switch i {
		case from:
			next = append(next, merged)
		case to:
		default:
			next = append(next, s)
		}
	}
	return c.commit(next, types.EditOpMerge, fmt.Sprintf("from=%d to=%d keep=%t", from, to, keepCurrent))
}

// concatSlots joins the non-empty paths in order.
func (c *Collection) concatSlots(ctx context.Context, paths ...string) (string, error) {
	present := lo.Filter(paths, func(p string, _ int) bool { return p != "" })
	switch len(present) {
	case 0:
		return "", nil
	case 1:
		return present[0], nil
	}
	out, err := c.media.Concat(ctx, present)
	if err != nil {
		return "", collaboratorErr("concat", err)
	}
	return out, nil
}

// SplitSceneAtPosition cuts the scene at index into two at position seconds.
// The first half keeps the original id; the second half is a copy with the
// next free id of the same story. Both keep the original content.
func (c *Collection) SplitSceneAtPosition(ctx context.Context, index int, position float64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}
	original := c.scenes[index]
	duration, err := c.durationOf(ctx, original)
	if err != nil {
		return err
	}
	if !(position > 0 && position < duration) {
		return apperrors.Newf(apperrors.CodeInvalidPosition, "Position outside scene duration", "position %.3f, duration %.3f", position, duration)
	}

	ids, err := c.nextIDs(c.groupOf(original.ID), 1)
	if err != nil {
		return err
	}

	first, second := original.Clone(), original.Clone()
	second.ID = ids[0]
	if original.ClipAudio != "" {
		head, tail, err := c.media.Split(ctx, original.ClipAudio, position)
		if err != nil {
			return collaboratorErr("split audio", err)
		}
		first.ClipAudio, second.ClipAudio = head, tail
	}
	if original.Clip != "" {
		head, tail, err := c.media.Split(ctx, original.Clip, position)
		if err != nil {
			return collaboratorErr("split video", err)
		}
		first.Clip, second.Clip = head, tail
	}
	first.Duration, second.Duration = position, duration-position

	return c.spliceLocked(index, []*types.Scene{first, second}, types.EditOpSplit,
		fmt.Sprintf("index=%d position=%.3f new_id=%d", index, position, second.ID))
}

// SplitSmartScene cuts scene into ceil(duration/section) consecutive pieces.
// The last piece takes whatever remains. Pieces get ascending new ids after
// the highest id of the story and replace the scene in one splice.
func (c *Collection) SplitSmartScene(ctx context.Context, scene *types.Scene, section float64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if scene == nil {
		return apperrors.ErrSceneNotFound
	}
	index := c.indexOfID(scene.ID)
	if index < 0 {
		return apperrors.Newf(apperrors.CodeSceneNotFound, "Scene not found", "id %d", scene.ID)
	}
	if section <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidPosition, "Invalid section length", "section %.3f", section)
	}

	original := c.scenes[index]
	duration, err := c.durationOf(ctx, original)
	if err != nil {
		return err
	}
	count := pieceCount(duration, section)
	if duration <= 0 || count <= 1 {
		return apperrors.Newf(apperrors.CodeInvalidPosition, "Scene is not longer than one section", "duration %.3f, section %.3f", duration, section)
	}

	ids, err := c.nextIDs(c.groupOf(original.ID), count)
	if err != nil {
		return err
	}

	pieces := make([]*types.Scene, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.DurationConcurrency)
	for i := 0; i < count; i++ {
		i := i
		start := float64(i) * section
		end := start + section
		if i == count-1 {
			end = duration
		}
		piece := original.Clone()
		piece.ID = ids[i]
		piece.Duration = end - start
		pieces[i] = piece

		g.Go(func() error {
			if original.ClipAudio != "" {
				out, err := c.media.Trim(gctx, original.ClipAudio, start, end)
				if err != nil {
					return collaboratorErr("trim audio", err)
				}
				piece.ClipAudio = out
			}
			if original.Clip != "" {
				out, err := c.media.Trim(gctx, original.Clip, start, end)
				if err != nil {
					return collaboratorErr("trim video", err)
				}
				piece.Clip = out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return c.spliceLocked(index, pieces, types.EditOpSmart,
		fmt.Sprintf("id=%d section=%.3f pieces=%d", original.ID, section, count))
}

// pieceCount is ceil(duration/section), tolerant of float noise on exact
// multiples.
func pieceCount(duration, section float64) int {
	if duration <= 0 || section <= 0 {
		return 0
	}
	return int(math.Ceil(duration/section - 1e-9))
}

// ShiftScene moves the boundary between two neighbouring scenes. The audio of
// the scene at a is cut at position; the part facing b moves into b's audio
// and a keeps the rest. Both videos are re-muxed with their new audio. The
// combined length of the two scenes does not change.
func (c *Collection) ShiftScene(ctx context.Context, a, b int, position float64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(a); err != nil {
		return err
	}
	if err := c.checkIndex(b); err != nil {
		return err
	}
	if err := checkAdjacent(a, b); err != nil {
		return err
	}

	sceneA, sceneB := c.scenes[a], c.scenes[b]
	if sceneA.ClipAudio == "" || sceneB.ClipAudio == "" {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Shift needs narration audio on both scenes", "ids %d, %d", sceneA.ID, sceneB.ID)
	}
	duration, err := c.durationOf(ctx, sceneA)
	if err != nil {
		return err
	}
	if !(position > 0 && position < duration) {
		return apperrors.Newf(apperrors.CodeInvalidPosition, "Position outside scene duration", "position %.3f, duration %.3f", position, duration)
	}

	head, tail, err := c.media.Split(ctx, sceneA.ClipAudio, position)
	if err != nil {
		return collaboratorErr("split audio", err)
	}

	var keptA string
	var joined []string
	if b > a {
		keptA, joined = head, []string{tail, sceneB.ClipAudio}
	} else {
		keptA, joined = tail, []string{sceneB.ClipAudio, head}
	}
	audioB, err := c.media.Concat(ctx, joined)
	if err != nil {
		return collaboratorErr("concat audio", err)
	}

	nextA, nextB := sceneA.Clone(), sceneB.Clone()
	nextA.ClipAudio, nextB.ClipAudio = keptA, audioB
	nextA.Duration, nextB.Duration = 0, 0
	for _, s := range []*types.Scene{nextA, nextB} {
		if s.Clip == "" {
			continue
		}
		muxed, err := c.media.AddAudioToVideo(ctx, s.Clip, s.ClipAudio)
		if err != nil {
			return collaboratorErr("mux", err)
		}
		s.Clip = muxed
	}

	next := append([]*types.Scene(nil), c.scenes...)
	next[a], next[b] = nextA, nextB
	return c.commit(next, types.EditOpShift, fmt.Sprintf("a=%d b=%d position=%.3f", a, b, position))
}

// SwapScene exchanges the list positions and the ids of two scenes, so each
// slot keeps its story membership. Applying it twice restores the list.
func (c *Collection) SwapScene(a, b int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(a); err != nil {
		return err
	}
	if err := c.checkIndex(b); err != nil {
		return err
	}

	next := append([]*types.Scene(nil), c.scenes...)
	sceneA, sceneB := next[a].Clone(), next[b].Clone()
	sceneA.ID, sceneB.ID = sceneB.ID, sceneA.ID
	next[a], next[b] = sceneB, sceneA
	return c.commit(next, types.EditOpSwap, fmt.Sprintf("a=%d b=%d", a, b))
}

// CloneScene inserts a copy of the scene at index right before it, or right
// after it when after is set. The copy gets the next free id of the story.
func (c *Collection) CloneScene(index int, after bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}
	original := c.scenes[index]
	ids, err := c.nextIDs(c.groupOf(original.ID), 1)
	if err != nil {
		return err
	}
	dup := original.Clone()
	dup.ID = ids[0]

	pair := []*types.Scene{dup, original.Clone()}
	if after {
		pair = []*types.Scene{original.Clone(), dup}
	}
	return c.spliceLocked(index, pair, types.EditOpClone, fmt.Sprintf("index=%d after=%t new_id=%d", index, after, dup.ID))
}

// ReplaceSceneWithOthers puts scenes in place of the one at index and
// persists the list. It is the primitive behind split and clone.
func (c *Collection) ReplaceSceneWithOthers(index int, scenes []*types.Scene) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}
	if err := c.checkUniqueIDs(index, scenes); err != nil {
		return err
	}
	return c.spliceLocked(index, cloneAll(scenes), types.EditOpSplice, fmt.Sprintf("index=%d count=%d", index, len(scenes)))
}

func (c *Collection) spliceLocked(index int, scenes []*types.Scene, op types.EditOp, detail string) error {
	if err := c.checkUniqueIDs(index, scenes); err != nil {
		return err
	}
	next := make([]*types.Scene, 0, len(c.scenes)-1+len(scenes))
	next = append(next, c.scenes[:index]...)
	next = append(next, scenes...)
	next = append(next, c.scenes[index+1:]...)
	return c.commit(next, op, detail)
}

// ReplaceScene removes the scene at index, or replaces it when scene is not
// nil. It returns nil when the story of the old scene had only that scene,
// otherwise copies of the story's members after the change.
func (c *Collection) ReplaceScene(index int, scene *types.Scene) ([]*types.Scene, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	old := c.scenes[index]
	group := c.groupOf(old.ID)
	sizeBefore := len(c.members(group))

	var replacement []*types.Scene
	detail := fmt.Sprintf("index=%d removed", index)
	if scene != nil {
		replacement = []*types.Scene{scene.Clone()}
		detail = fmt.Sprintf("index=%d id=%d", index, scene.ID)
	}
	if err := c.spliceLocked(index, replacement, types.EditOpReplace, detail); err != nil {
		return nil, err
	}
	if sizeBefore == 1 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.members(group)), nil
}

// UpdateScene applies fn to a copy of the scene at index and stores it.
func (c *Collection) UpdateScene(index int, fn func(*types.Scene)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}
	updated := c.scenes[index].Clone()
	fn(updated)
	return c.spliceLocked(index, []*types.Scene{updated}, types.EditOpUpdate, fmt.Sprintf("index=%d id=%d", index, updated.ID))
}

// PropagateRootMedia copies the zero track of the scene at index to every
// other scene of its story.
func (c *Collection) PropagateRootMedia(index int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}
	source := c.scenes[index]
	group := c.groupOf(source.ID)
	root := source.Media(types.TrackZero)

	next := make([]*types.Scene, len(c.scenes))
	for i, s := range c.scenes {
		if i == index || c.groupOf(s.ID) != group {
			next[i] = s
			continue
		}
		updated := s.Clone()
		updated.SetMedia(types.TrackZero, root)
		next[i] = updated
	}
	return c.commit(next, types.EditOpUpdate, fmt.Sprintf("root media from index=%d", index))
}

func checkAdjacent(a, b int) error {
	if a-b != 1 && b-a != 1 {
		return apperrors.Newf(apperrors.CodeAdjacencyViolation, "Scenes are not adjacent", "indices %d and %d", a, b)
	}
	return nil
}

// checkUniqueIDs verifies that splicing scenes in at index keeps every id in
// the list unique.
func (c *Collection) checkUniqueIDs(index int, scenes []*types.Scene) error {
	taken := make(map[int]struct{}, len(c.scenes)+len(scenes))
	for i, s := range c.scenes {
		if i != index {
			taken[s.ID] = struct{}{}
		}
	}
	for _, s := range scenes {
		if s == nil {
			return apperrors.Newf(apperrors.CodeInvalidParams, "Invalid parameters", "nil scene")
		}
		if _, dup := taken[s.ID]; dup {
			return apperrors.Newf(apperrors.CodeInvalidParams, "Duplicate scene id", "id %d", s.ID)
		}
		taken[s.ID] = struct{}{}
	}
	return nil
}

// nextIDs returns n unused ids in group, ascending from the group's highest
// id. If that runs past the group's id range, the lowest free ids of the
// group are used instead.
func (c *Collection) nextIDs(group, n int) ([]int, error) {
	factor := c.opts.GroupFactor
	taken := lo.SliceToMap(c.scenes, func(s *types.Scene) (int, struct{}) { return s.ID, struct{}{} })
	memberIDs := lo.Map(c.members(group), func(s *types.Scene, _ int) int { return s.ID })

	low := group * factor
	high := low + factor - 1
	start := low
	if len(memberIDs) > 0 {
		start = lo.Max(memberIDs) + 1
	}

	ids := make([]int, 0, n)
	collect := func(from int) {
		for id := from; id <= high && len(ids) < n; id++ {
			if _, used := taken[id]; used {
				continue
			}
			ids = append(ids, id)
			taken[id] = struct{}{}
		}
	}
	collect(start)
	if len(ids) < n {
		for _, id := range ids {
			delete(taken, id)
		}
		ids = ids[:0]
		collect(low)
	}
	if len(ids) < n {
		return nil, apperrors.Newf(apperrors.CodeInvalidIndex, "No free scene id in story", "group %d", group)
	}
	return ids, nil
}
