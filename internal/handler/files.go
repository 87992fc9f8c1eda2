package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"magic-workflow/internal/project"
	"magic-workflow/internal/response"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
)

// sniffLen covers every header filetype matches on.
const sniffLen = 261

func (h *Handler) DownloadFile(c *gin.Context) {
	requestedFile := c.Param("filepath")
	if hasParentTraversal(requestedFile) {
		c.JSON(http.StatusForbidden, response.Response{
			Error: apperrors.CodeInvalidParams,
			Msg:   "Invalid file path",
		})
		return
	}

	localFilePath, ok := resolveDownloadPath(requestedFile)
	if !ok {
		c.JSON(http.StatusNotFound, response.Response{
			Error: apperrors.CodeFileNotFound,
			Msg:   "File not found",
		})
		return
	}
	info, err := os.Stat(localFilePath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, response.Response{
			Error: apperrors.CodeFileNotFound,
			Msg:   "File not found",
		})
		return
	}
	c.FileAttachment(localFilePath, filepath.Base(localFilePath))
}

// UploadMedia stores audio, video or image files in the project media dir
// and returns their paths relative to the project directory, ready to be
// put into a scene slot.
func (h *Handler) UploadMedia(c *gin.Context) {
	p, err := h.Service.OpenProject(c.Param("pid"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.ErrorResponse(c, bindErr(err))
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		response.ErrorResponse(c, apperrors.Newf(apperrors.CodeInvalidParams, "Invalid parameters", "no file uploaded"))
		return
	}

	dir := p.Ctx.MediaDir()
	if err = os.MkdirAll(dir, 0o755); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeFileWriteError, "File write failed", err))
		return
	}

	saved := make([]string, 0, len(files))
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			response.ErrorResponse(c, bindErr(err))
			return
		}
		head := make([]byte, sniffLen)
		n, _ := io.ReadFull(src, head)
		src.Close()
		head = head[:n]
		if !filetype.IsAudio(head) && !filetype.IsVideo(head) && !filetype.IsImage(head) {
			response.ErrorResponse(c, apperrors.Newf(apperrors.CodeInvalidParams, "Unsupported media type", "%s", file.Filename))
			return
		}

		name := filepath.Base(file.Filename)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			response.ErrorResponse(c, apperrors.Newf(apperrors.CodeInvalidParams, "Invalid parameters", "bad file name %q", file.Filename))
			return
		}
		if err = c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
			response.ErrorResponse(c, apperrors.WrapWithDetail(apperrors.CodeFileWriteError, "File write failed", name, err))
			return
		}
		saved = append(saved, filepath.ToSlash(filepath.Join(project.MediaDirName, name)))
	}

	log.GetLogger().Info("[Handler] media uploaded", zap.String("pid", p.Ctx.Pid), zap.Strings("files", saved))
	response.Success(c, gin.H{"file_path": saved})
}
