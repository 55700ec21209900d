package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/internal/policy"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/response"
)

// ContextMembership holds the caller's *models.Membership for :orgId.
const ContextMembership = "org_membership"

// Route parameter names.
const (
	ParamOrgID   = "orgId"
	ParamEventID = "eventId"
	ParamUserID  = "userId"
	ParamPhotoID = "photoId"
)

// MembershipFinder loads the caller's membership. It returns nil, nil when
// the caller is not a member.
type MembershipFinder interface {
	FindMembership(ctx context.Context, orgName, userID string) (*models.Membership, error)
}

// EventLookup resolves the organization an event belongs to and whether a
// user attends it.
type EventLookup interface {
	EventOrganization(ctx context.Context, eventID string) (string, error)
	IsAttending(ctx context.Context, eventID, userID string) bool
}

// Access enforces policy decisions for org-scoped routes.
type Access struct {
	members   MembershipFinder
	events    EventLookup
	responder *response.Responder
}

// NewAccess creates the access middleware factory. events may be nil when no
// route uses :eventId.
func NewAccess(members MembershipFinder, events EventLookup, responder *response.Responder) *Access {
	if responder == nil {
		responder = response.NewResponder(nil)
	}
	return &Access{members: members, events: events, responder: responder}
}

// Require allows the request only when policy.Evaluate permits action.
func (a *Access) Require(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := policy.Actor{UserID: UserID(c), Role: UserRole(c)}
		res := policy.Resource{OrgName: c.Param(ParamOrgID), TargetUserID: c.Param(ParamUserID)}

		if res.OrgName != "" && policy.NeedsMembership(action) {
			m, err := a.members.FindMembership(ctx, res.OrgName, actor.UserID)
			if err != nil {
				a.responder.Abort(c, apperr.Wrap(err, "Failed to verify organization membership"))
				return
			}
			actor.Membership = m
			if m != nil {
				c.Set(ContextMembership, m)
			}
		}

		if eventID := c.Param(ParamEventID); eventID != "" && a.events != nil && res.OrgName != "" {
			orgName, err := a.events.EventOrganization(ctx, eventID)
			if err != nil {
				a.responder.Abort(c, err)
				return
			}
			if models.OrgKeyName(orgName) != models.OrgKeyName(res.OrgName) {
				a.responder.Abort(c, apperr.NotFound("Event not found"))
				return
			}
			if policy.NeedsAttendance(action) {
				actor.Attending = a.events.IsAttending(ctx, eventID, actor.UserID)
			}
		}

		d := policy.Evaluate(actor, action, res)
		if !d.Allowed {
			status := http.StatusForbidden
			if actor.UserID == "" {
				status = http.StatusUnauthorized
			}
			response.Fail(c, status, d.Reason)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Membership returns the membership loaded by Require, if any.
func Membership(c *gin.Context) *models.Membership {
	if v, ok := c.Get(ContextMembership); ok {
		if m, ok := v.(*models.Membership); ok {
			return m
		}
	}
	return nil
}
