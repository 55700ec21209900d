// Package policy decides whether an actor may perform an action on a
// resource. Every role check in the HTTP layer goes through Evaluate.
package policy

import "github.com/photocomp/backend/internal/models"

// Action names a protected operation.
type Action string

const (
	ActionManageAccount    Action = "account:manage"
	ActionViewOrg          Action = "org:view"
	ActionUpdateOrg        Action = "org:update"
	ActionManageMembers    Action = "members:manage"
	ActionChangeMemberRole Action = "members:change-role"
	ActionLeaveOrg         Action = "org:leave"
	ActionReviewRequests   Action = "requests:review"
	ActionViewEvents       Action = "events:view"
	ActionManageEvents     Action = "events:manage"
	ActionAttendEvent      Action = "events:attend"
	ActionViewPhotos       Action = "photos:view"
	ActionManagePhotos     Action = "photos:manage"
	ActionViewTaggedPhotos Action = "tags:view-own"
)

// Actor is the authenticated caller plus whatever relationships were loaded
// for the resource in question.
type Actor struct {
	UserID     string
	Role       models.UserRole
	Membership *models.Membership
	Attending  bool
}

// Resource identifies what the action targets.
type Resource struct {
	OrgName      string
	TargetUserID string
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// NeedsMembership reports whether Evaluate reads Actor.Membership for action.
func NeedsMembership(a Action) bool {
	switch a {
	case ActionManageAccount, ActionViewTaggedPhotos:
		return false
	}
	return true
}

// NeedsAttendance reports whether Evaluate reads Actor.Attending for action.
func NeedsAttendance(a Action) bool {
	return a == ActionViewPhotos
}

// IsOrgAdmin is the membership-level admin predicate.
func IsOrgAdmin(m *models.Membership) bool {
	return m != nil && m.Role == models.MemberRoleAdmin
}

// IsOrgMember is true for any membership row with a role.
func IsOrgMember(m *models.Membership) bool {
	return m != nil && m.Role != ""
}

// Evaluate is the single authorization decision point.
func Evaluate(actor Actor, action Action, res Resource) Decision {
	if actor.UserID == "" {
		return deny("Authentication required")
	}
	switch action {
	case ActionManageAccount, ActionViewTaggedPhotos:
		if res.TargetUserID != actor.UserID {
			return deny("You can only access your own account")
		}
		return allow()

	case ActionViewOrg:
		return allow()

	case ActionLeaveOrg:
		if !IsOrgMember(actor.Membership) {
			return deny("You are not a member of this organization")
		}
		if res.TargetUserID != actor.UserID {
			return deny("You can only remove yourself from an organization")
		}
		return allow()

	case ActionViewEvents, ActionAttendEvent:
		if !IsOrgMember(actor.Membership) {
			return deny("You are not a member of this organization")
		}
		return allow()

	case ActionViewPhotos:
		if IsOrgAdmin(actor.Membership) || (IsOrgMember(actor.Membership) && actor.Attending) {
			return allow()
		}
		return deny("You must be attending this event to view its photos")

	case ActionChangeMemberRole:
		if !IsOrgAdmin(actor.Membership) {
			return deny("Only organization admins can perform this action")
		}
		if res.TargetUserID == actor.UserID {
			return deny("You cannot change your own role")
		}
		return allow()

	case ActionUpdateOrg, ActionManageMembers, ActionReviewRequests, ActionManageEvents, ActionManagePhotos:
		if !IsOrgAdmin(actor.Membership) {
			return deny("Only organization admins can perform this action")
		}
		return allow()
	}
	return deny("Unknown action")
}
