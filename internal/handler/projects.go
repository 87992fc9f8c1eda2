package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"magic-workflow/internal/dto"
	"magic-workflow/internal/project"
	"magic-workflow/internal/response"
	"magic-workflow/log"
)

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Service.RecentProjects(limitQuery(c))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, projects)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}

	pc, err := h.Service.CreateProject(req.Pid, req.Language, req.Channel, req.ProjectPath, req.Script)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	if req.Bootstrap {
		if err = h.Service.RequestBootstrap(req.Pid, false); err != nil {
			log.GetLogger().Warn("[Handler] bootstrap request failed", zap.String("pid", req.Pid), zap.Error(err))
		}
	}
	response.Success(c, projectRes(pc, 0))
}

func (h *Handler) GetProject(c *gin.Context) {
	p, err := h.Service.OpenProject(c.Param("pid"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, projectRes(p.Ctx, p.Scenes.Len()))
}

func (h *Handler) CloseProject(c *gin.Context) {
	h.Service.CloseProject(c.Param("pid"))
	response.Success(c, nil)
}

func (h *Handler) BootstrapScenes(c *gin.Context) {
	var req dto.BootstrapReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorResponse(c, bindErr(err))
			return
		}
	}
	if err := h.Service.RequestBootstrap(c.Param("pid"), req.Overwrite); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true})
}

func (h *Handler) GetTitles(c *gin.Context) {
	choices, err := h.Service.TitleChoices(c.Param("pid"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, choices)
}

func (h *Handler) GenerateTitles(c *gin.Context) {
	if err := h.Service.RequestTitles(c.Param("pid")); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true})
}

func (h *Handler) ApplyTitle(c *gin.Context) {
	var req dto.ApplyTitleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	if err := h.Service.ApplyTitle(c.Param("pid"), req.Title, req.Tags); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) GetEdits(c *gin.Context) {
	edits, err := h.Service.Edits(c.Param("pid"), limitQuery(c))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, edits)
}

func projectRes(pc *project.Context, sceneCount int) dto.ProjectRes {
	return dto.ProjectRes{
		Pid:         pc.Pid,
		Language:    pc.Language,
		Channel:     pc.Channel,
		Title:       pc.Title,
		Tags:        pc.Tags,
		ProjectPath: pc.ProjectPath,
		Settings:    pc.SettingKeys(),
		SceneCount:  sceneCount,
	}
}
