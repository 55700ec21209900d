package events

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/response"
)

// CreateEventRequest is the body for POST /organizations/:orgId/events.
type CreateEventRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Location    string `json:"location" binding:"max=200"`
	IsPublic    *bool  `json:"isPublic"`
}

// UpdateEventRequest is the body for PATCH /organizations/:orgId/events/:eventId.
type UpdateEventRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Location    *string `json:"location" binding:"omitempty,max=200"`
}

// Handler handles event and attendance endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

// CreateEvent handles POST /organizations/:orgId/events.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.AddEventToOrganization(c.Request.Context(), c.Param(middleware.ParamOrgID), CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
		IsPublic:    req.IsPublic,
	}, middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Event created successfully", ev)
}

func (h *Handler) page(c *gin.Context) (models.PageRequest, bool) {
	page, err := models.ParsePageRequest(c.Query("limit"), c.Query("cursor"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return page, false
	}
	return page, true
}

// ListEvents handles GET /organizations/:orgId/events.
func (h *Handler) ListEvents(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	res, err := h.svc.GetAllOrganizationEvents(c.Request.Context(), c.Param(middleware.ParamOrgID), page)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ListPublicEvents handles GET /organizations/:orgId/events/public.
func (h *Handler) ListPublicEvents(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	res, err := h.svc.GetAllPublicOrganizationEvents(c.Request.Context(), c.Param(middleware.ParamOrgID), page)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, res)
}

// GetEvent handles GET /organizations/:orgId/events/:eventId.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.svc.GetEvent(c.Request.Context(), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, ev)
}

// UpdateEvent handles PATCH /organizations/:orgId/events/:eventId.
func (h *Handler) UpdateEvent(c *gin.Context) {
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.UpdateEvent(c.Request.Context(), c.Param(middleware.ParamEventID), UpdateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Event updated successfully", ev)
}

// ToggleVisibility handles PATCH /organizations/:orgId/events/:eventId/visibility.
func (h *Handler) ToggleVisibility(c *gin.Context) {
	ctx := c.Request.Context()
	ev, err := h.svc.GetEvent(ctx, c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	updated, err := h.svc.UpdateEventPublicity(ctx, ev)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Event visibility updated", updated)
}

// DeleteEvent handles DELETE /organizations/:orgId/events/:eventId.
func (h *Handler) DeleteEvent(c *gin.Context) {
	summary, err := h.svc.DeleteEvent(c.Request.Context(), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	failed := make([]string, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		failed = append(failed, f.ID)
	}
	response.OKMessage(c, "Event deleted successfully", gin.H{
		"attempted": summary.Attempted,
		"succeeded": summary.Succeeded,
		"failed":    failed,
	})
}

// Attend handles POST /organizations/:orgId/events/:eventId/attend.
func (h *Handler) Attend(c *gin.Context) {
	a, err := h.svc.AddEventUser(c.Request.Context(), c.Param(middleware.ParamEventID), middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Attending event", a)
}

// Unattend handles DELETE /organizations/:orgId/events/:eventId/attend.
func (h *Handler) Unattend(c *gin.Context) {
	if err := h.svc.RemoveEventUser(c.Request.Context(), c.Param(middleware.ParamEventID), middleware.UserID(c)); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "No longer attending event", nil)
}

// ListAttendees handles GET /organizations/:orgId/events/:eventId/attendees.
func (h *Handler) ListAttendees(c *gin.Context) {
	list, err := h.svc.ListEventAttendees(c.Request.Context(), c.Param(middleware.ParamEventID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"attendees": list, "count": len(list)})
}
