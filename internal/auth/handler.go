package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/pkg/response"
)

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for PATCH /api/auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,nefield=CurrentPassword"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "User registered successfully", res)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Login successful", res)
}

// ChangePassword handles PATCH /api/auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Password changed successfully", nil)
}

// DeleteUser handles DELETE /api/auth/users/:userId.
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param(middleware.ParamUserID)); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "User deleted successfully", nil)
}
