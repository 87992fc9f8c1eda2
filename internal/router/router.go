package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"magic-workflow/internal/handler"
)

func SetupRouter(r *gin.Engine, hdl *handler.Handler) {
	api := r.Group("/api")
	{
		api.GET("/projects", hdl.ListProjects)
		api.POST("/projects", hdl.CreateProject)
		api.GET("/projects/:pid", hdl.GetProject)
		api.POST("/projects/:pid/close", hdl.CloseProject)
		api.POST("/projects/:pid/bootstrap", hdl.BootstrapScenes)
		api.GET("/projects/:pid/titles", hdl.GetTitles)
		api.POST("/projects/:pid/titles", hdl.GenerateTitles)
		api.POST("/projects/:pid/titles/apply", hdl.ApplyTitle)
		api.GET("/projects/:pid/edits", hdl.GetEdits)
		api.POST("/projects/:pid/media", hdl.UploadMedia)
	}

	scenes := api.Group("/projects/:pid/scenes")
	{
		scenes.GET("", hdl.ListScenes)
		scenes.POST("/merge", hdl.MergeScenes)
		scenes.POST("/split", hdl.SplitScene)
		scenes.POST("/smart-split", hdl.SmartSplitScene)
		scenes.POST("/shift", hdl.ShiftScenes)
		scenes.POST("/swap", hdl.SwapScenes)
		scenes.POST("/clone", hdl.CloneScene)
		scenes.GET("/:index/story", hdl.GetStory)
		scenes.GET("/:index/detail", hdl.GetSceneDetail)
		scenes.PUT("/:index", hdl.ReplaceScene)
		scenes.DELETE("/:index", hdl.DeleteScene)
		scenes.POST("/:index/replace-with-others", hdl.ReplaceWithOthers)
		scenes.PUT("/:index/content", hdl.UpdateSceneContent)
		scenes.POST("/:index/propagate", hdl.PropagateRootMedia)
		scenes.POST("/:index/fade", hdl.FadeRootAudio)
	}

	api.GET("/file/*filepath", hdl.DownloadFile)
	api.HEAD("/file/*filepath", hdl.DownloadFile)
	api.GET("/events", hdl.Hub.ServeEvents)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}
