package photos

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/response"
	"github.com/photocomp/backend/pkg/storage"
)

// UploadPhotoForm holds the text fields sent with the "photo" file.
type UploadPhotoForm struct {
	Title       string `form:"title" binding:"max=200"`
	Description string `form:"description" binding:"max=2000"`
}

// Handler handles photo endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates a photos handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

// Upload handles POST /organizations/:orgId/events/:eventId/photos.
func (h *Handler) Upload(c *gin.Context) {
	var form UploadPhotoForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		response.BadRequest(c, "A photo file is required")
		return
	}
	data, contentType, err := storage.ReadFormImage(fh)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, "Photo exceeds the 10MB limit")
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		response.BadRequest(c, "Photo must be a JPEG, PNG or GIF image")
		return
	case err != nil:
		response.BadRequest(c, "Invalid photo upload: "+err.Error())
		return
	}
	photo, err := h.svc.UploadPhoto(c.Request.Context(), UploadInput{
		EventID:    c.Param(middleware.ParamEventID),
		Data:       data,
		MimeType:   contentType,
		UploaderID: middleware.UserID(c),
		Metadata:   models.PhotoMetadata{Title: form.Title, Description: form.Description},
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Photo uploaded successfully", photo)
}

// ListEventPhotos handles GET /organizations/:orgId/events/:eventId/photos.
func (h *Handler) ListEventPhotos(c *gin.Context) {
	list, err := h.svc.GetEventPhotos(c.Request.Context(), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"photos": list, "count": len(list)})
}

// ListOrganizationPhotos handles GET /organizations/:orgId/photos.
func (h *Handler) ListOrganizationPhotos(c *gin.Context) {
	list, err := h.svc.GetAllOrganizationPhotos(c.Request.Context(), c.Param(middleware.ParamOrgID), middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"photos": list, "count": len(list)})
}

// Delete handles DELETE /organizations/:orgId/events/:eventId/photos/:photoId.
func (h *Handler) Delete(c *gin.Context) {
	summary, err := h.svc.DeletePhoto(c.Request.Context(), c.Param(middleware.ParamPhotoID), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Photo deleted successfully", gin.H{"cleanupFailures": len(summary.Failures)})
}

// Download handles GET /organizations/:orgId/events/:eventId/photos/:photoId/download.
func (h *Handler) Download(c *gin.Context) {
	url, err := h.svc.GetPhotoDownloadURL(c.Request.Context(), c.Param(middleware.ParamPhotoID), c.Param(middleware.ParamEventID), c.Query("size"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"downloadUrl": url})
}
