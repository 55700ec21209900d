package tags

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/pkg/response"
)

// TagUsersRequest is the body for POST .../photos/:photoId/tags.
type TagUsersRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,max=100,dive,required"`
}

// Handler handles tagging endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates a tags handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

// TagUsers handles POST /organizations/:orgId/events/:eventId/photos/:photoId/tags.
func (h *Handler) TagUsers(c *gin.Context) {
	var req TagUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	created, err := h.svc.TagUsersInPhoto(c.Request.Context(), TagRequest{
		PhotoID: c.Param(middleware.ParamPhotoID),
		EventID: c.Param(middleware.ParamEventID),
		UserIDs: req.UserIDs,
	}, middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Users tagged successfully", gin.H{"tags": created, "count": len(created)})
}

// ListPhotoTags handles GET /organizations/:orgId/events/:eventId/photos/:photoId/tags.
func (h *Handler) ListPhotoTags(c *gin.Context) {
	list, err := h.svc.GetPhotoTags(c.Request.Context(), c.Param(middleware.ParamPhotoID), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"tags": list, "count": len(list)})
}

// RemoveTag handles DELETE /organizations/:orgId/events/:eventId/photos/:photoId/tags/:userId.
func (h *Handler) RemoveTag(c *gin.Context) {
	if err := h.svc.RemoveTag(c.Request.Context(), c.Param(middleware.ParamUserID), c.Param(middleware.ParamPhotoID), c.Param(middleware.ParamEventID)); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Tag removed successfully", nil)
}

// UserTaggedPhotos handles GET /users/:userId/tagged-photos.
func (h *Handler) UserTaggedPhotos(c *gin.Context) {
	list, err := h.svc.GetUserTaggedPhotos(c.Request.Context(), c.Param(middleware.ParamUserID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"photos": list, "count": len(list)})
}
