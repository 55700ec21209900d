package organizations

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/response"
	"github.com/photocomp/backend/pkg/storage"
)

// CreateOrganizationRequest is the JSON body for POST /organizations. The
// multipart form uses the same field names plus a "logo" file.
type CreateOrganizationRequest struct {
	Name         string `json:"name" form:"name" binding:"required"`
	Description  string `json:"description" form:"description"`
	Website      string `json:"website" form:"website" binding:"omitempty,url"`
	ContactEmail string `json:"contactEmail" form:"contactEmail" binding:"omitempty,email"`
	IsPublic     *bool  `json:"isPublic" form:"isPublic"`
	LogoURL      string `json:"logoUrl" form:"logoUrl" binding:"omitempty,url"`
}

// UpdateOrganizationRequest is the body for PATCH /organizations/:orgId.
type UpdateOrganizationRequest struct {
	Description  *string `json:"description" form:"description"`
	Website      *string `json:"website" form:"website" binding:"omitempty,url"`
	ContactEmail *string `json:"contactEmail" form:"contactEmail" binding:"omitempty,email"`
	IsPublic     *bool   `json:"isPublic" form:"isPublic"`
	LogoURL      *string `json:"logoUrl" form:"logoUrl" binding:"omitempty,url"`
}

// UpdateMemberRoleRequest is the body for PATCH /organizations/:orgId/members/:userId.
type UpdateMemberRoleRequest struct {
	Role models.MemberRole `json:"role" binding:"required,oneof=ADMIN MEMBER"`
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	svc       *Service
	responder *response.Responder
	logger    *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(svc *Service, responder *response.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, responder: responder, logger: logger}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readLogo returns the uploaded "logo" file, or nil when the form has none.
func readLogo(c *gin.Context) (*LogoFile, error) {
	fh, err := c.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, contentType, err := storage.ReadFormImage(fh)
	if err != nil {
		return nil, err
	}
	return &LogoFile{Data: data, ContentType: contentType, Filename: fh.Filename}, nil
}

func logoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, "Logo exceeds the 10MB limit")
	case errors.Is(err, storage.ErrUnsupportedType):
		response.BadRequest(c, "Logo must be a JPEG, PNG or GIF image")
	default:
		response.BadRequest(c, "Invalid logo upload: "+err.Error())
	}
}

// CreateOrganization handles POST /organizations.
func (h *Handler) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	in := CreateOrgInput{
		Name:         req.Name,
		Description:  req.Description,
		Website:      req.Website,
		ContactEmail: req.ContactEmail,
		IsPublic:     req.IsPublic,
		LogoURL:      req.LogoURL,
	}
	userID := middleware.UserID(c)

	var (
		org *models.Organization
		err error
	)
	if isMultipart(c) {
		logo, lerr := readLogo(c)
		if lerr != nil {
			logoError(c, lerr)
			return
		}
		if logo != nil {
			org, err = h.svc.CreateOrgWithFileUpload(c.Request.Context(), in, *logo, userID)
		} else {
			org, err = h.svc.CreateOrg(c.Request.Context(), in, userID)
		}
	} else {
		org, err = h.svc.CreateOrg(c.Request.Context(), in, userID)
	}
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.Created(c, "Organization created successfully", org)
}

// ListOrganizations handles GET /organizations.
func (h *Handler) ListOrganizations(c *gin.Context) {
	page, err := models.ParsePageRequest(c.Query("limit"), c.Query("cursor"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.ListOrgs(c.Request.Context(), page)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	if res.Count == 0 {
		response.NoContent(c)
		return
	}
	response.OK(c, res)
}

// ListMyOrganizations handles GET /organizations/mine.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	orgs, err := h.svc.ListUserOrgs(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"organizations": orgs, "count": len(orgs)})
}

// GetOrganization handles GET /organizations/:orgId.
func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.svc.GetOrg(c.Request.Context(), c.Param(middleware.ParamOrgID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, org)
}

// UpdateOrganization handles PATCH /organizations/:orgId.
func (h *Handler) UpdateOrganization(c *gin.Context) {
	var req UpdateOrganizationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	var logo *LogoFile
	if isMultipart(c) {
		var err error
		if logo, err = readLogo(c); err != nil {
			logoError(c, err)
			return
		}
	}
	org, err := h.svc.UpdateOrg(c.Request.Context(), c.Param(middleware.ParamOrgID), UpdateOrgInput{
		Description:  req.Description,
		Website:      req.Website,
		ContactEmail: req.ContactEmail,
		IsPublic:     req.IsPublic,
		LogoURL:      req.LogoURL,
	}, logo)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Organization updated successfully", org)
}

// ListMembers handles GET /organizations/:orgId/members.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context(), c.Param(middleware.ParamOrgID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"members": members, "count": len(members)})
}

// UpdateMemberRole handles PATCH /organizations/:orgId/members/:userId.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	m, err := h.svc.UpdateMemberRole(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID), req.Role)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Member role updated successfully", m)
}

// RemoveMember handles DELETE /organizations/:orgId/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID)); err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Member removed successfully", nil)
}

// LeaveOrganization handles DELETE /organizations/:orgId/members/:userId/leave.
func (h *Handler) LeaveOrganization(c *gin.Context) {
	err := h.svc.LeaveOrganization(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID), middleware.UserID(c))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OKMessage(c, "Successfully left organization", nil)
}

// IsMember handles GET /organizations/:orgId/members/:userId/status.
func (h *Handler) IsMember(c *gin.Context) {
	ok, err := h.svc.IsMemberOfOrg(c.Request.Context(), c.Param(middleware.ParamOrgID), c.Param(middleware.ParamUserID))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	response.OK(c, gin.H{"isMember": ok})
}
