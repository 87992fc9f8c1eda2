package dto

import "magic-workflow/internal/types"

type CreateProjectReq struct {
	Pid         string `json:"pid" binding:"required"`
	Language    string `json:"language"`
	Channel     string `json:"channel"`
	ProjectPath string `json:"project_path"`
	Script      string `json:"script"`
	Bootstrap   bool   `json:"bootstrap"`
}

type BootstrapReq struct {
	Overwrite bool `json:"overwrite"`
}

type MergeSceneReq struct {
	From        *int `json:"from" binding:"required"`
	To          *int `json:"to" binding:"required"`
	KeepCurrent bool `json:"keep_current"`
}

type SplitSceneReq struct {
	Index    *int    `json:"index" binding:"required"`
	Position float64 `json:"position"`
}

type SmartSplitReq struct {
	Index   *int    `json:"index" binding:"required"`
	Section float64 `json:"section"`
}

type ShiftSceneReq struct {
	A        *int    `json:"a" binding:"required"`
	B        *int    `json:"b" binding:"required"`
	Position float64 `json:"position"`
}

type SwapSceneReq struct {
	A *int `json:"a" binding:"required"`
	B *int `json:"b" binding:"required"`
}

type CloneSceneReq struct {
	Index *int `json:"index" binding:"required"`
	After bool `json:"after"`
}

type ReplaceSceneReq struct {
	Scenes []*types.Scene `json:"scenes" binding:"required"`
}

type UpdateSceneReq struct {
	Content string `json:"content"`
}

type FadeRootAudioReq struct {
	Start   float64 `json:"start"`
	Length  float64 `json:"length"`
	FadeIn  float64 `json:"fade_in"`
	FadeOut float64 `json:"fade_out"`
}

type ApplyTitleReq struct {
	Title string   `json:"title" binding:"required"`
	Tags  []string `json:"tags"`
}

type DeleteSceneRes struct {
	Remaining []*types.Scene `json:"remaining"`
	StoryGone bool           `json:"story_gone"`
}

type ProjectRes struct {
	Pid         string   `json:"pid"`
	Language    string   `json:"language"`
	Channel     string   `json:"channel"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	ProjectPath string   `json:"project_path"`
	Settings    []string `json:"settings"`
	SceneCount  int      `json:"scene_count"`
}
