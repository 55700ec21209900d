package requests

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/pkg/response"
)

// ApplyRequest is the optional body for POST /organizations/:orgId/requests.
type ApplyRequest struct {
	Message string `json:"message" binding:"max=1000"`
}

// Handler handles membership request endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates a requests handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

// Apply handles POST /organizations/:orgId/requests.
func (h *Handler) Apply(c *gin.Context) {
	var req ApplyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}
	res, err := h.svc.ApplyToOrganization(c.Request.Context(), c.Param(middleware.ParamOrgID), middleware.UserID(c), req.Message)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Membership request submitted", res)
}

// ListPending handles GET /organizations/:orgId/requests.
func (h *Handler) ListPending(c *gin.Context) {
	reqs, err := h.svc.GetPendingRequests(c.Request.Context(), c.Param(middleware.ParamOrgID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"requests": reqs, "count": len(reqs)})
}

// Approve handles PUT /organizations/:orgId/requests/:userId.
func (h *Handler) Approve(c *gin.Context) {
	m, err := h.svc.ApproveRequest(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Membership request approved", m)
}

// Deny handles DELETE /organizations/:orgId/requests/:userId.
func (h *Handler) Deny(c *gin.Context) {
	if err := h.svc.DenyRequest(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID)); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Membership request denied", nil)
}
