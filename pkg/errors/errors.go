// Package errors provides structured error handling for the application.
// It defines AppError type with error codes for consistent API responses.
package errors

import (
	"errors"
	"fmt"
)

// Error codes organized by category
const (
	// General errors (1000-1099)
	CodeSuccess       = 0
	CodeUnknown       = 1000
	CodeInvalidParams = 1001
	CodeNotFound      = 1002

	// Scene structure errors (1100-1199)
	CodeInvalidIndex       = 1100
	CodeAdjacencyViolation = 1101
	CodeWouldEmptyGroup    = 1102
	CodeInvalidPosition    = 1103
	CodeSceneNotFound      = 1104

	// Collaborator errors (1200-1299)
	CodeCollaboratorFailure = 1200
	CodeMediaDurationFailed = 1201
	CodeMediaProcessFailed  = 1202
	CodeLLMFailed           = 1203

	// Project errors (1300-1399)
	CodeProjectNotFound      = 1300
	CodeProjectConfigInvalid = 1301

	// Storage errors (1500-1599)
	CodeDBError        = 1500
	CodeFileNotFound   = 1501
	CodeFileWriteError = 1502

	// Task errors (1600-1699)
	CodeQueueFull     = 1600
	CodeRunnerStopped = 1601
)

// Kind is the coarse classification callers of structural scene operations
// switch on.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidIndex        Kind = "InvalidIndex"
	KindAdjacencyViolation  Kind = "AdjacencyViolation"
	KindWouldEmptyGroup     Kind = "WouldEmptyGroup"
	KindCollaboratorFailure Kind = "CollaboratorFailure"
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted detail.
func Newf(code int, message string, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetail wraps an error with additional detail
func WrapWithDetail(code int, message string, detail string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// Is checks if the target error is an AppError with the specified code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts error code from error, returns CodeUnknown if not AppError
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetMessage extracts message from error
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// GetKind maps err onto the structural error kind. Invalid positions and
// missing scenes count as index errors; anything that is not a structural
// rejection is a collaborator failure.
func GetKind(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch GetCode(err) {
	case CodeInvalidIndex, CodeInvalidPosition, CodeSceneNotFound:
		return KindInvalidIndex
	case CodeAdjacencyViolation:
		return KindAdjacencyViolation
	case CodeWouldEmptyGroup:
		return KindWouldEmptyGroup
	default:
		return KindCollaboratorFailure
	}
}

// Predefined common errors
var (
	ErrInvalidParams = New(CodeInvalidParams, "Invalid parameters")
	ErrNotFound      = New(CodeNotFound, "Resource not found")

	// Scene structure
	ErrInvalidIndex       = New(CodeInvalidIndex, "Scene index out of range")
	ErrAdjacencyViolation = New(CodeAdjacencyViolation, "Scenes are not adjacent")
	ErrWouldEmptyGroup    = New(CodeWouldEmptyGroup, "Operation would empty the story group")
	ErrInvalidPosition    = New(CodeInvalidPosition, "Position outside scene duration")
	ErrSceneNotFound      = New(CodeSceneNotFound, "Scene not found")

	// Collaborators
	ErrMediaDurationFailed = New(CodeMediaDurationFailed, "Media duration lookup failed")
	ErrMediaProcessFailed  = New(CodeMediaProcessFailed, "Media processing failed")
	ErrLLMFailed           = New(CodeLLMFailed, "Text generation failed")

	// Project
	ErrProjectNotFound      = New(CodeProjectNotFound, "Project not found")
	ErrProjectConfigInvalid = New(CodeProjectConfigInvalid, "Project config is invalid")

	// Storage
	ErrDBError        = New(CodeDBError, "Database error")
	ErrFileNotFound   = New(CodeFileNotFound, "File not found")
	ErrFileWriteError = New(CodeFileWriteError, "File write failed")

	// Tasks
	ErrQueueFull     = New(CodeQueueFull, "Task queue is full")
	ErrRunnerStopped = New(CodeRunnerStopped, "Task runner stopped")
)
