package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for mutations and errors. Read endpoints answer
// with their payload directly via Raw.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// AppError is a domain error carrying the HTTP status it maps to.
type AppError struct {
	HTTPStatus int
	Message    string
	Detail     string
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail returns a copy of e with the detail set.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Message: msg}
}

func NewConflict(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Message: msg}
}

// Raw sends data as the whole 200 body.
func Raw(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Success sends {"success":true,"message":msg}. Extra fields are merged into
// the body, e.g. the token on login.
func Success(c *gin.Context, msg string, extra ...gin.H) {
	if len(extra) == 0 {
		c.JSON(http.StatusOK, Response{Success: true, Message: msg})
		return
	}
	body := gin.H{"success": true, "message": msg}
	for _, h := range extra {
		for k, v := range h {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

// Error sends an error envelope. An *AppError keeps its status; anything else
// is reported as a 500 with the error text as detail.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{Message: appErr.Message, Detail: appErr.Detail})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{Message: "internal server error", Detail: err.Error()})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Message: msg, Detail: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Message: msg, Detail: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Message: msg, Detail: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Message: msg, Detail: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Message: msg, Detail: msg})
}
