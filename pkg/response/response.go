package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/pkg/apperr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Body is the standard API response envelope.
type Body struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Status: StatusSuccess, Data: data})
}

// OKMessage sends a 200 JSON response with a message and optional data.
func OKMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Status: StatusSuccess, Message: message, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Status: StatusSuccess, Message: message, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail sends an error envelope with the given status.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Body{Status: StatusError, Message: message})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, message)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, message)
}

// Responder maps service errors to the error envelope. It is the only place
// that inspects error types.
type Responder struct {
	logger *zap.Logger
}

// NewResponder creates a responder; a nil logger disables cause logging.
func NewResponder(logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{logger: logger}
}

// Error writes err as {status:"error", message} with its status code.
// Non-application errors become 500 with a generic message.
func (r *Responder) Error(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		r.logger.Error("unhandled error", zap.Error(err), zap.String("path", c.FullPath()))
		Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		r.logger.Error(appErr.Message, zap.Error(appErr.Err), zap.String("path", c.FullPath()))
	}
	Fail(c, appErr.StatusCode, appErr.Message)
}

// Abort writes err and stops the handler chain.
func (r *Responder) Abort(c *gin.Context, err error) {
	r.Error(c, err)
	c.Abort()
}
