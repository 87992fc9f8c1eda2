package response

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "magic-workflow/pkg/errors"
)

// Response is the standard API response structure
type Response struct {
	Error  int32          `json:"error"`            // Error code (0 = success)
	Msg    string         `json:"msg"`              // Human-readable message
	Kind   apperrors.Kind `json:"kind,omitempty"`   // Structural error kind
	Detail string         `json:"detail,omitempty"` // Additional error details
	Data   any            `json:"data"`             // Response payload
}

// R sends a JSON response
func R(c *gin.Context, data any) {
	c.JSON(200, data)
}

// Success returns a success response with data
func Success(c *gin.Context, data any) {
	c.JSON(200, Response{
		Error: 0,
		Msg:   "Success",
		Data:  data,
	})
}

// Error returns an error response with code and message
func Error(c *gin.Context, code int, msg string) {
	c.JSON(200, Response{
		Error: int32(code),
		Msg:   msg,
		Data:  nil,
	})
}

// FromError converts an error to a Response.
// AppErrors keep their code, message and detail; anything else is CodeUnknown.
func FromError(err error) Response {
	if err == nil {
		return Response{
			Error: 0,
			Msg:   "Success",
		}
	}

	var detail string
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		detail = appErr.Detail
	}

	return Response{
		Error:  int32(apperrors.GetCode(err)),
		Msg:    apperrors.GetMessage(err),
		Kind:   apperrors.GetKind(err),
		Detail: detail,
		Data:   nil,
	}
}

// ErrorResponse sends an error response from an error
func ErrorResponse(c *gin.Context, err error) {
	c.JSON(200, FromError(err))
}
