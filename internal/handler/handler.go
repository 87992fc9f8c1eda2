package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"magic-workflow/internal/service"
	apperrors "magic-workflow/pkg/errors"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func indexParam(c *gin.Context) (int, error) {
	raw := c.Param("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Newf(apperrors.CodeInvalidIndex, "Scene index out of range", "index %q is not a number", raw)
	}
	return index, nil
}

func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func bindErr(err error) error {
	return apperrors.WrapWithDetail(apperrors.CodeInvalidParams, "Invalid parameters", err.Error(), err)
}
