package handler

import (
	"github.com/gin-gonic/gin"

	"magic-workflow/internal/dto"
	"magic-workflow/internal/response"
	"magic-workflow/internal/types"
)

func (h *Handler) ListScenes(c *gin.Context) {
	scenes, err := h.Service.Scenes(c.Param("pid"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, scenes)
}

func (h *Handler) GetStory(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	scenes, err := h.Service.Story(c.Param("pid"), index)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, scenes)
}

func (h *Handler) GetSceneDetail(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	view, err := h.Service.Detail(c.Request.Context(), c.Param("pid"), index)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) MergeScenes(c *gin.Context) {
	var req dto.MergeSceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.Merge(c.Request.Context(), c.Param("pid"), *req.From, *req.To, req.KeepCurrent))
}

func (h *Handler) SplitScene(c *gin.Context) {
	var req dto.SplitSceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.Split(c.Request.Context(), c.Param("pid"), *req.Index, req.Position))
}

func (h *Handler) SmartSplitScene(c *gin.Context) {
	var req dto.SmartSplitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.SmartSplit(c.Request.Context(), c.Param("pid"), *req.Index, req.Section))
}

func (h *Handler) ShiftScenes(c *gin.Context) {
	var req dto.ShiftSceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.Shift(c.Request.Context(), c.Param("pid"), *req.A, *req.B, req.Position))
}

func (h *Handler) SwapScenes(c *gin.Context) {
	var req dto.SwapSceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.Swap(c.Request.Context(), c.Param("pid"), *req.A, *req.B))
}

func (h *Handler) CloneScene(c *gin.Context) {
	var req dto.CloneSceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.Clone(c.Request.Context(), c.Param("pid"), *req.Index, req.After))
}

func (h *Handler) ReplaceWithOthers(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	var req dto.ReplaceSceneReq
	if err = c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.ReplaceWithOthers(c.Request.Context(), c.Param("pid"), index, req.Scenes))
}

// ReplaceScene overwrites the scene at index with the request body.
func (h *Handler) ReplaceScene(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	var sc types.Scene
	if err = c.ShouldBindJSON(&sc); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.replace(c, index, &sc)
}

func (h *Handler) DeleteScene(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	h.replace(c, index, nil)
}

func (h *Handler) replace(c *gin.Context, index int, sc *types.Scene) {
	remaining, err := h.Service.Replace(c.Request.Context(), c.Param("pid"), index, sc)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.DeleteSceneRes{
		Remaining: remaining,
		StoryGone: remaining == nil,
	})
}

func (h *Handler) UpdateSceneContent(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	var req dto.UpdateSceneReq
	if err = c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.UpdateContent(c.Request.Context(), c.Param("pid"), index, req.Content))
}

func (h *Handler) PropagateRootMedia(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	h.respondScenes(c, h.Service.PropagateRootMedia(c.Request.Context(), c.Param("pid"), index))
}

func (h *Handler) FadeRootAudio(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	var req dto.FadeRootAudioReq
	if err = c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	h.respondScenes(c, h.Service.FadeRootAudio(c.Request.Context(), c.Param("pid"), index,
		req.Start, req.Length, req.FadeIn, req.FadeOut))
}

// respondScenes answers an edit with the resulting scene list.
func (h *Handler) respondScenes(c *gin.Context, err error) {
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	h.ListScenes(c)
}
